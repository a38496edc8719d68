package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/request"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strict   bool
		wantURL  string
		wantKind request.Kind
	}{
		{name: "http with path", raw: "http://10.0.0.1/", strict: true, wantURL: "http://10.0.0.1/"},
		{name: "https with path", raw: "https://boot.example.com/RedirTest2", strict: true, wantURL: "https://boot.example.com/RedirTest2"},
		{name: "upper case scheme", raw: "HTTP://10.0.0.1/a", strict: true, wantURL: "http://10.0.0.1/a"},
		{name: "missing path strict", raw: "http://10.0.0.1", strict: true, wantKind: request.KindInvalidURL},
		{name: "missing path lenient", raw: "http://10.0.0.1", strict: false, wantURL: "http://10.0.0.1/"},
		{name: "empty", raw: "  ", strict: true, wantKind: request.KindInvalidURL},
		{name: "ftp scheme", raw: "ftp://10.0.0.1/", strict: true, wantKind: request.KindInvalidURL},
		{name: "no scheme", raw: "10.0.0.1/", strict: true, wantKind: request.KindInvalidURL},
		{name: "no host", raw: "http:///path", strict: true, wantKind: request.KindInvalidURL},
		{name: "malformed", raw: "http://[::1", strict: true, wantKind: request.KindInvalidURL},
		{name: "ipv6 literal", raw: "http://[2001:db8::1]/", strict: true, wantKind: request.KindInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ValidateURL(tt.raw, tt.strict)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Nil(t, u)
				assert.Equal(t, tt.wantKind, request.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, u.String())
		})
	}
}
