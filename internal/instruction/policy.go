package instruction

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrRejected wraps every reason a Call is refused before execution.
var ErrRejected = errors.New("call rejected")

var validate = validator.New()

// Policy is the allow-list a Call must satisfy before it reaches the API.
type Policy struct {
	methods   map[string]struct{}
	endpoints []string
}

// NewPolicy builds a Policy. An endpoint entry allows itself and anything below it,
// so "/customers" also allows "/customers/7".
func NewPolicy(methods, endpoints []string) *Policy {
	p := &Policy{methods: make(map[string]struct{}, len(methods))}
	for _, m := range methods {
		p.methods[strings.ToUpper(m)] = struct{}{}
	}
	for _, e := range endpoints {
		p.endpoints = append(p.endpoints, strings.TrimRight(e, "/"))
	}
	return p
}

// Check returns nil when c may be executed.
func (p *Policy) Check(c Call) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if _, ok := p.methods[c.Method]; !ok {
		return fmt.Errorf("%w: method %s not allowed", ErrRejected, c.Method)
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: endpoint %q: %v", ErrRejected, c.Endpoint, err)
	}
	// one trailing slash is tolerated: "/customers/" is "/customers"
	clean := u.Path
	if len(clean) > 1 {
		clean = strings.TrimSuffix(clean, "/")
	}
	if u.Scheme != "" || u.Host != "" || u.Fragment != "" || path.Clean(clean) != clean {
		return fmt.Errorf("%w: endpoint %q is not a plain API path", ErrRejected, c.Endpoint)
	}
	if !p.allowsPath(clean) {
		return fmt.Errorf("%w: endpoint %s not allowed", ErrRejected, u.Path)
	}

	if c.Data != nil {
		trimmed := bytes.TrimSpace(c.Data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return fmt.Errorf("%w: data must be a JSON object or null", ErrRejected)
		}
	}
	return nil
}

func (p *Policy) allowsPath(endpoint string) bool {
	for _, allowed := range p.endpoints {
		if endpoint == allowed || strings.HasPrefix(endpoint, allowed+"/") {
			return true
		}
	}
	return false
}
