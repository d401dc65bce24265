package utils

import (
	"github.com/go-resty/resty/v2"
)

// HTTPClient wraps resty.Client. The embedding exposes the full resty API
// while keeping one place to hang shared client behavior later.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an HTTPClient over a freshly configured resty
// client. Each call yields an independent client with its own connection
// pool and state.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{Client: resty.New()}
}
