package http

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/request"
)

func selfSignedDER(t *testing.T, cn string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func TestTrustPool(t *testing.T) {
	first := selfSignedDER(t, "netreq-root-a")
	second := selfSignedDER(t, "netreq-root-b")
	pemBoth := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: first}),
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: second})...,
	)

	tests := []struct {
		name      string
		anchor    []byte
		wantCerts int
		wantErr   bool
	}{
		{name: "single der", anchor: first, wantCerts: 1},
		{name: "concatenated der", anchor: append(append([]byte{}, first...), second...), wantCerts: 2},
		{name: "pem bundle", anchor: pemBoth, wantCerts: 2},
		{name: "pem without certificate", anchor: []byte("-----BEGIN NOTHING-----\n"), wantErr: true},
		{name: "garbage", anchor: []byte{0x01, 0x02, 0x03}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := TrustPool(tt.anchor)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, request.KindTLSTrustFailure, request.KindOf(err))
				return
			}
			require.NoError(t, err)
			//nolint:staticcheck // Subjects is fine for pools built from explicit certificates
			assert.Len(t, pool.Subjects(), tt.wantCerts)
		})
	}
}
