package invoicing

import (
	"bytes"
	"encoding/json"
)

// FailureMessage is the error text of a Result built from a non-success status.
const FailureMessage = "API call failed"

// Result is what a call produced, as it will be shown to the LLM.
type Result struct {
	Status int
	Body   json.RawMessage
}

type failureBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func failure(status int) Result {
	body, _ := json.Marshal(failureBody{Error: FailureMessage, Status: status})
	return Result{Status: status, Body: body}
}

// OK reports whether the API accepted the call.
func (r Result) OK() bool {
	return r.Status == 200 || r.Status == 201
}

// Indented renders the body with two-space indentation.
func (r Result) Indented() string {
	return Indent(r.Body)
}

// Indent pretty-prints raw JSON. Invalid input is returned unchanged.
func Indent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
