package engine

import (
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/gaborage/go-netreq/request"
)

// RedirectPolicy decides where a request goes after a 3xx response.
type RedirectPolicy int

const (
	// FollowLocation resubmits to the Location the server sent.
	FollowLocation RedirectPolicy = iota
	// UseBootstrap resubmits to the caller's bootstrap URL and ignores the
	// server's Location. Without a bootstrap URL it behaves like FollowLocation.
	UseBootstrap
)

func (p RedirectPolicy) String() string {
	switch p {
	case FollowLocation:
		return "follow_location"
	case UseBootstrap:
		return "use_bootstrap"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// next returns the target to resubmit to after the 3xx response stored on req
// for current.
func (p RedirectPolicy) next(req *request.NetworkRequest, current string) (string, error) {
	if p == UseBootstrap && strings.TrimSpace(req.Request.BootstrapURL) != "" {
		return req.Request.BootstrapURL, nil
	}

	location := strings.TrimSpace(req.Response.Header("Location"))
	if location == "" {
		return "", redirectError(req, fmt.Sprintf("%s from %s carries no Location", req.Status.ReturnCode, current), nil)
	}

	base, err := neturl.Parse(current)
	if err != nil {
		return "", request.NewError(request.KindInvalidURL, fmt.Sprintf("malformed redirect source %q", current), err)
	}
	ref, err := neturl.Parse(location)
	if err != nil {
		return "", redirectError(req, fmt.Sprintf("unusable Location %q from %s", location, current), err)
	}
	return base.ResolveReference(ref).String(), nil
}

func redirectError(req *request.NetworkRequest, msg string, cause error) *request.Error {
	e := request.NewHTTPError(req.Status.HTTPStatus, msg)
	e.Err = cause
	return e
}
