package remote

import (
	"net/http"
	"time"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBearerToken authenticates requests with a session token.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithEvaluatorID identifies the owner through a trusted gateway header.
func WithEvaluatorID(id string) Option {
	return func(c *Client) {
		c.evaluatorID = id
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}
