package http

import (
	"context"
	nethttp "net/http"
	"time"
)

// RequestInterceptor is called before sending the request
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after receiving the response, before its body is read
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the session manager configuration
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	// StrictURLPath rejects targets without a path. When unset the path
	// defaults to "/".
	StrictURLPath        bool
	UserAgent            string
	DefaultHeaders       map[string]string
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
}
