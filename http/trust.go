package http

import (
	"bytes"
	"crypto/x509"

	"github.com/gaborage/go-netreq/request"
)

// TrustPool builds the root pool of a session from a PEM or DER trust anchor.
// DER input may hold several concatenated certificates.
func TrustPool(anchor []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()

	if bytes.Contains(anchor, []byte("-----BEGIN")) {
		if !pool.AppendCertsFromPEM(anchor) {
			return nil, request.NewError(request.KindTLSTrustFailure, "trust anchor holds no PEM certificate", nil)
		}
		return pool, nil
	}

	certs, err := x509.ParseCertificates(anchor)
	if err != nil {
		return nil, request.NewError(request.KindTLSTrustFailure, "trust anchor is neither PEM nor DER", err)
	}
	if len(certs) == 0 {
		return nil, request.NewError(request.KindTLSTrustFailure, "trust anchor is empty", nil)
	}
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	return pool, nil
}
