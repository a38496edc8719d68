package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"maps"
	"net"
	nethttp "net/http"
	neturl "net/url"
	"slices"
	"strings"
	"time"

	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/trace"
)

const (
	// DefaultTimeout bounds connect, handshake and the whole exchange
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes caps the response body kept on the request
	DefaultMaxBodyBytes int64 = 16 << 20

	DefaultUserAgent = "go-netreq/1.0"

	HTTPVersion11 = "HTTP/1.1"
)

// Manager opens sessions and performs exchanges on behalf of the engine.
// It holds no per-request state and is safe for concurrent use.
type Manager struct {
	logger logger.Logger
	config *Config
}

// Builder provides a fluent interface for configuring the session manager
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new session manager builder
func NewBuilder(log logger.Logger) *Builder {
	return &Builder{
		config: &Config{
			Timeout:        DefaultTimeout,
			MaxBodyBytes:   DefaultMaxBodyBytes,
			StrictURLPath:  true,
			UserAgent:      DefaultUserAgent,
			DefaultHeaders: make(map[string]string),
		},
		logger: log,
	}
}

func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

func (b *Builder) WithMaxBodyBytes(n int64) *Builder {
	b.config.MaxBodyBytes = n
	return b
}

func (b *Builder) WithStrictURLPath(strict bool) *Builder {
	b.config.StrictURLPath = strict
	return b
}

func (b *Builder) WithUserAgent(ua string) *Builder {
	b.config.UserAgent = ua
	return b
}

// WithDefaultHeader adds a default header that will be sent with all requests
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

func (b *Builder) WithRequestInterceptor(interceptor RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, interceptor)
	return b
}

func (b *Builder) WithResponseInterceptor(interceptor ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, interceptor)
	return b
}

// Build creates the session manager with the configured options
func (b *Builder) Build() *Manager {
	cfg := *b.config
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	cfg.DefaultHeaders = maps.Clone(b.config.DefaultHeaders)
	return &Manager{logger: b.logger, config: &cfg}
}

// Perform sends req to target over a fresh session and stores the response
// on req. A nil error means a response was received, whatever its status.
// On failure the response section is left empty and the status section
// describes the error.
func (m *Manager) Perform(ctx context.Context, req *request.NetworkRequest, target string) error {
	start := time.Now()
	req.CleanupResponse()

	u, err := ValidateURL(target, m.config.StrictURLPath)
	if err != nil {
		return m.fail(req, err)
	}

	if err := m.open(req, u); err != nil {
		return m.fail(req, err)
	}
	defer req.ReleaseSession()

	httpReq, err := m.buildRequest(ctx, req, u)
	if err != nil {
		return m.fail(req, err)
	}

	m.logRequest(ctx, httpReq, len(req.Request.Body))

	httpResp, err := req.Session.Client.Do(httpReq)
	if err != nil {
		return m.fail(req, classify(ctx, err, u.String()))
	}
	defer httpResp.Body.Close()

	if err := m.runResponseInterceptors(ctx, httpReq, httpResp); err != nil {
		return m.fail(req, request.NewError(request.KindProtocolError, "response interceptor failed", err))
	}

	body, err := readBody(httpResp.Body, m.config.MaxBodyBytes)
	if err != nil {
		return m.fail(req, err)
	}

	req.Response = request.Response{
		Body:    body,
		Headers: flattenHeaders(httpResp.Header),
	}
	req.Status.HTTPStatus = httpResp.StatusCode
	req.Status.ReturnCode = httpResp.Status
	req.Status.FinalURL = u.String()

	m.logResponse(ctx, httpResp, len(body), time.Since(start))
	return nil
}

// open creates the session for one attempt and records it on req.
func (m *Manager) open(req *request.NetworkRequest, u *neturl.URL) error {
	req.ReleaseSession()

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if u.Scheme == "https" && len(req.TrustAnchor) > 0 {
		pool, err := TrustPool(req.TrustAnchor)
		if err != nil {
			return err
		}
		tlsConfig.RootCAs = pool
	}

	dialer := &net.Dialer{Timeout: m.config.Timeout}
	if req.Nic.Dialer != nil {
		dialer.LocalAddr = req.Nic.Dialer.LocalAddr
	}

	transport := &nethttp.Transport{
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   m.config.Timeout,
		ResponseHeaderTimeout: m.config.Timeout,
		DisableKeepAlives:     true,
		ForceAttemptHTTP2:     false,
	}

	req.Session = request.Session{
		Client: &nethttp.Client{
			Transport: transport,
			Timeout:   m.config.Timeout,
			CheckRedirect: func(*nethttp.Request, []*nethttp.Request) error {
				return nethttp.ErrUseLastResponse
			},
		},
		Transport: transport,
		Config: request.SessionConfig{
			HTTPVersion: HTTPVersion11,
			IPv6:        false,
			TrustAnchor: req.TrustAnchor,
		},
	}
	return nil
}

func (m *Manager) buildRequest(ctx context.Context, req *request.NetworkRequest, u *neturl.URL) (*nethttp.Request, error) {
	method := string(req.Request.Method)
	if method == "" {
		method = nethttp.MethodGet
	}

	var body io.Reader
	if len(req.Request.Body) > 0 {
		body = bytes.NewReader(req.Request.Body)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, request.NewError(request.KindInvalidURL, "failed to create HTTP request", err)
	}

	for key, value := range m.config.DefaultHeaders {
		httpReq.Header.Set(key, value)
	}
	if m.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", m.config.UserAgent)
	}
	if body != nil {
		contentType := req.Request.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	trace.InjectHeaders(trace.WithRequestID(ctx, req.ID), httpReq.Header)

	for _, interceptor := range m.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, request.NewError(request.KindProtocolError, "request interceptor failed", err)
		}
	}
	return httpReq, nil
}

func (m *Manager) runResponseInterceptors(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error {
	for _, interceptor := range m.config.ResponseInterceptors {
		if err := interceptor(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}

// fail records err on the status section and returns it.
func (m *Manager) fail(req *request.NetworkRequest, err error) error {
	req.CleanupResponse()
	req.Status.Code = request.KindOf(err)
	req.Status.Message = err.Error()
	req.Status.HTTPStatus = 0
	req.Status.ReturnCode = ""
	return err
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, request.NewError(request.KindProtocolError, "failed to read response body", err)
	}
	if int64(len(body)) > limit {
		return nil, request.NewError(request.KindOutOfResources,
			fmt.Sprintf("response body exceeds %d bytes", limit), nil)
	}
	return body, nil
}

// flattenHeaders lists headers sorted by name, keeping the order of repeated values.
func flattenHeaders(h nethttp.Header) []request.Header {
	out := make([]request.Header, 0, len(h))
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, value := range h[name] {
			out = append(out, request.Header{Name: name, Value: value})
		}
	}
	return out
}

func (m *Manager) logRequest(ctx context.Context, httpReq *nethttp.Request, bodyLen int) {
	logEvent := m.logger.WithContext(ctx).Info().
		Str("direction", "outbound").
		Str("method", httpReq.Method).
		Str("url", httpReq.URL.String())

	if bodyLen > 0 {
		logEvent = logEvent.Int("body_bytes", bodyLen)
	}

	logEvent.Msg("HTTP session request")
}

func (m *Manager) logResponse(ctx context.Context, resp *nethttp.Response, bodyLen int, elapsed time.Duration) {
	logEvent := m.logger.WithContext(ctx).Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int("body_bytes", bodyLen)

	if location := resp.Header.Get("Location"); location != "" {
		logEvent = logEvent.Str("location", location)
	}
	if proto := resp.Proto; proto != "" && !strings.EqualFold(proto, HTTPVersion11) {
		logEvent = logEvent.Str("proto", proto)
	}

	logEvent.Msg("HTTP session response")
}
