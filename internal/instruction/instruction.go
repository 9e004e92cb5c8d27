// Package instruction turns the assistant's raw output into a typed decision
// about what to do with a user's message.
package instruction

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Kind names the variant of a Decision.
type Kind string

const (
	KindCall      Kind = "call"
	KindSignal    Kind = "signal"
	KindMalformed Kind = "malformed"
)

// Decision is one of Call, Signal or Malformed.
type Decision interface {
	Kind() Kind
}

// Call asks for one request against the invoicing API.
type Call struct {
	Method   string          `json:"method" validate:"required,oneof=GET POST PUT DELETE"`
	Endpoint string          `json:"endpoint" validate:"required,startswith=/"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Signal means the model declined to build a call and wants the user told why.
type Signal struct {
	Message string
}

// Malformed is output that could not be read as an instruction at all.
type Malformed struct {
	Raw string
	Err error
}

func (Call) Kind() Kind      { return KindCall }
func (Signal) Kind() Kind    { return KindSignal }
func (Malformed) Kind() Kind { return KindMalformed }

var (
	errNotObject = errors.New("output is not a JSON object")
	errNoTarget  = errors.New("output has neither an endpoint nor an error")
	errNoReason  = errors.New("error signal carries no message")
)

// Parse reads raw model output. It never fails: anything unusable is Malformed.
func Parse(raw string) Decision {
	trimmed := strings.TrimSpace(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return Malformed{Raw: raw, Err: err}
	}
	if fields == nil {
		return Malformed{Raw: raw, Err: errNotObject}
	}

	_, hasEndpoint := fields["endpoint"]
	if msg, ok := fields["error"]; ok && !hasEndpoint {
		text := signalText(msg)
		if text == "" {
			return Malformed{Raw: raw, Err: errNoReason}
		}
		return Signal{Message: text}
	}
	if !hasEndpoint {
		return Malformed{Raw: raw, Err: errNoTarget}
	}

	var c Call
	if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
		return Malformed{Raw: raw, Err: err}
	}
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if _, ok := fields["data"]; !ok {
		// a call that omits data still sends an empty object
		c.Data = json.RawMessage("{}")
	} else if isNull(c.Data) {
		c.Data = nil
	}
	return c
}

// signalText is empty when the model gave no usable reason.
func signalText(msg json.RawMessage) string {
	if isNull(msg) {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(bytes.TrimSpace(msg))
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
