package http

import (
	"fmt"
	"net/netip"
	neturl "net/url"
	"strings"

	"github.com/gaborage/go-netreq/request"
)

// ValidateURL parses raw and checks it can be sent over an IPv4 HTTP(S)
// session. With strictPath set, a URL without a path, such as
// "http://host", is rejected; otherwise its path becomes "/".
func ValidateURL(raw string, strictPath bool) (*neturl.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, request.NewError(request.KindInvalidURL, "URL cannot be empty", nil)
	}

	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, request.NewError(request.KindInvalidURL, fmt.Sprintf("malformed URL %q", raw), err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, request.NewError(request.KindInvalidURL, fmt.Sprintf("unsupported scheme %q in %q", u.Scheme, raw), nil)
	}
	if u.Hostname() == "" {
		return nil, request.NewError(request.KindInvalidURL, fmt.Sprintf("URL %q has no host", raw), nil)
	}
	if addr, err := netip.ParseAddr(u.Hostname()); err == nil && addr.Is6() && !addr.Is4In6() {
		return nil, request.NewError(request.KindInvalidURL, fmt.Sprintf("IPv6 target %q is not supported", raw), nil)
	}

	if u.Path == "" {
		if strictPath {
			return nil, request.NewError(request.KindInvalidURL, fmt.Sprintf("URL %q must end with a path separator", raw), nil)
		}
		u.Path = "/"
	}
	return u, nil
}
