package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/gaborage/go-netreq/request"
)

// classify maps a transport error from the HTTP client to a request error.
func classify(ctx context.Context, err error, target string) *request.Error {
	if ctx.Err() != nil {
		return request.NewError(request.KindCanceled, fmt.Sprintf("request to %s canceled", target), err)
	}

	if isTrustError(err) {
		return request.NewError(request.KindTLSTrustFailure, fmt.Sprintf("certificate of %s not trusted", target), err)
	}

	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return request.NewError(request.KindProtocolError, fmt.Sprintf("TLS handshake with %s failed", target), err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) {
		return request.NewError(request.KindConnectionFailed, fmt.Sprintf("connection to %s failed", target), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return request.NewError(request.KindConnectionFailed, fmt.Sprintf("request to %s timed out", target), err)
	}

	return request.NewError(request.KindProtocolError, fmt.Sprintf("exchange with %s failed", target), err)
}

func isTrustError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostname) ||
		errors.As(err, &invalid)
}
