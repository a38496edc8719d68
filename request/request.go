// Package request defines the NetworkRequest aggregate that flows through
// interface enumeration, address acquisition, the HTTP(S) session and the
// redirect & retry engine.
//
// The aggregate is split into sections, each owned by one stage:
//   - Input: what the caller asked for; never edited by the processor
//   - Response: the last response, handed to the caller on return
//   - Status: the outcome of the most recent attempt
//   - Session: the live HTTP client of an attempt
//   - Nic: the interface binding of the current attempt
//
// Every section can be cleared on its own (see Cleanup).
package request

import (
	"fmt"
	"net"
	nethttp "net/http"
	"net/netip"
	"strings"

	"github.com/google/uuid"

	"github.com/gaborage/go-netreq/nic"
	"github.com/gaborage/go-netreq/wait"
)

// Method is the HTTP method of a request.
type Method string

const (
	MethodGet  Method = nethttp.MethodGet
	MethodPost Method = nethttp.MethodPost
	MethodPut  Method = nethttp.MethodPut
)

// ParseMethod validates a method name. An empty name means GET.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", nethttp.MethodGet:
		return MethodGet, nil
	case nethttp.MethodPost:
		return MethodPost, nil
	case nethttp.MethodPut:
		return MethodPut, nil
	default:
		return "", fmt.Errorf("unsupported HTTP method: %q", s)
	}
}

// Input holds the caller-supplied request parameters.
type Input struct {
	URL          string
	Method       Method
	BootstrapURL string
	Body         []byte
	ContentType  string
}

// Header is a single response header line.
type Header struct {
	Name  string
	Value string
}

// Response holds the body and headers of the last response received.
type Response struct {
	Body    []byte
	Headers []Header
}

// Header returns the first value of the named header, matched case-insensitively.
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Empty reports whether the section holds nothing.
func (r *Response) Empty() bool {
	return r.Body == nil && r.Headers == nil
}

// Status describes the outcome of the most recent attempt.
type Status struct {
	Code       Kind
	ReturnCode string // status line text, e.g. "302 Found"
	Message    string
	HTTPStatus int
	FinalURL   string
	Redirects  []string
	Attempts   int
	NicChanges int
	Interface  string
}

// Empty reports whether the section holds nothing.
func (s *Status) Empty() bool {
	return s.Code == "" && s.ReturnCode == "" && s.Message == "" && s.HTTPStatus == 0 &&
		s.FinalURL == "" && s.Redirects == nil && s.Attempts == 0 && s.NicChanges == 0 && s.Interface == ""
}

// SessionConfig is the configuration record a session was opened with.
type SessionConfig struct {
	HTTPVersion string
	IPv6        bool
	TrustAnchor []byte
}

// Session is the live HTTP session of one attempt.
type Session struct {
	Client    *nethttp.Client
	Transport *nethttp.Transport
	Config    SessionConfig
}

// Active reports whether a session is currently open.
func (s *Session) Active() bool {
	return s.Client != nil || s.Transport != nil
}

// AccessPoint is the IPv4 configuration sessions are opened from.
type AccessPoint struct {
	LocalAddress      netip.Addr
	UseDefaultAddress bool
	LocalPort         uint16
}

// NicBinding holds the interface a request is currently bound to.
type NicBinding struct {
	Interface     nic.Interface
	Bound         bool
	DHCPRequested bool
	// Dialer spawns the connections of every session opened on this interface.
	Dialer *net.Dialer
	IPv4   AccessPoint
	// Wait is only set while a DHCP lease is pending.
	Wait *wait.Handle
}

// NetworkRequest is the aggregate describing one logical HTTP(S) transaction.
// It is owned by the caller and mutated in place by the processor.
type NetworkRequest struct {
	ID string
	// TrustAnchor is an optional PEM or DER certificate installed into secure
	// sessions. The processor only reads it.
	TrustAnchor []byte

	Request  Input
	Response Response
	Status   Status
	Session  Session
	Nic      NicBinding
}

// New creates a request for url with a fresh correlation id.
func New(url string, method Method) *NetworkRequest {
	if method == "" {
		method = MethodGet
	}
	return &NetworkRequest{
		ID: uuid.NewString(),
		Request: Input{
			URL:    url,
			Method: method,
		},
	}
}

// TakeResponse hands the response section over to the caller and clears it.
func (r *NetworkRequest) TakeResponse() Response {
	resp := r.Response
	r.Response = Response{}
	return resp
}

// Bind attaches the request to iface, releasing any previous binding first.
func (r *NetworkRequest) Bind(iface nic.Interface) {
	r.Unbind()
	r.Nic.Interface = iface
	r.Nic.Bound = true
}
