package invoicing

import (
	"net/http"
	"time"
)

// DefaultBaseURL is where the invoicing API listens unless configured otherwise.
const DefaultBaseURL = "http://127.0.0.1:8000/api"

type options struct {
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client
	observer   Observer
}

func defaultOptions() options {
	return options{
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
}

// Option customises a Client.
type Option func(*options)

func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}

func WithBearerToken(token string) Option {
	return func(o *options) {
		if token != "" {
			o.headers["Authorization"] = "Bearer " + token
		}
	}
}

// WithHTTPClient replaces the underlying client; the timeout option is then ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithObserver reports every call made against the API.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
