package instruction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPolicy() *Policy {
	return NewPolicy(
		[]string{"get", "POST", "PUT", "DELETE"},
		[]string{"/customers", "/store-invoice", "/store-customer/"},
	)
}

func TestPolicy_Allows(t *testing.T) {
	p := testPolicy()
	for _, c := range []Call{
		{Method: "POST", Endpoint: "/store-invoice", Data: json.RawMessage(`{"customer_id":"7"}`)},
		{Method: "POST", Endpoint: "/store-customer", Data: json.RawMessage(` {"name":"ACME"}`)},
		{Method: "GET", Endpoint: "/customers"},
		{Method: "GET", Endpoint: "/customers/7"},
		{Method: "GET", Endpoint: "/customers/"},
		{Method: "GET", Endpoint: "/customers/7/"},
		{Method: "GET", Endpoint: "/customers?name=ACME"},
		{Method: "DELETE", Endpoint: "/customers/7"},
	} {
		require.NoError(t, p.Check(c), "%+v", c)
	}
}

func TestPolicy_Rejects(t *testing.T) {
	p := NewPolicy([]string{"GET", "POST"}, []string{"/customers", "/store-invoice"})
	for name, c := range map[string]Call{
		"missing method":       {Endpoint: "/customers"},
		"unknown verb":         {Method: "PATCH", Endpoint: "/customers"},
		"verb not allowed":     {Method: "DELETE", Endpoint: "/customers/1"},
		"relative endpoint":    {Method: "GET", Endpoint: "customers"},
		"absolute url":         {Method: "GET", Endpoint: "/http://evil.example/customers"},
		"traversal":            {Method: "GET", Endpoint: "/customers/../admin"},
		"double slash":         {Method: "GET", Endpoint: "/customers//"},
		"host smuggling":       {Method: "GET", Endpoint: "//evil.example/customers"},
		"prefix but not child": {Method: "GET", Endpoint: "/customers-export"},
		"unknown endpoint":     {Method: "POST", Endpoint: "/store-customer"},
		"array data":           {Method: "POST", Endpoint: "/store-invoice", Data: json.RawMessage(`[1,2]`)},
		"string data":          {Method: "POST", Endpoint: "/store-invoice", Data: json.RawMessage(`"x"`)},
	} {
		err := p.Check(c)
		require.ErrorIs(t, err, ErrRejected, name)
	}
}
