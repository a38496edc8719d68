package loader

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/request"
)

const certFile = "mikeytbds3.cer"

func TestLoadBytesByName(t *testing.T) {
	fsys := fstest.MapFS{
		certFile:          {Data: []byte("-----BEGIN CERTIFICATE-----")},
		"empty.bin":       {Data: []byte{}},
		"big.bin":         {Data: make([]byte, 64)},
		"certs/inner.pem": {Data: []byte("inner")},
	}
	l := New(fsys, 32)

	tests := []struct {
		name     string
		resource string
		want     []byte
		wantKind request.Kind
	}{
		{name: "existing", resource: certFile, want: []byte("-----BEGIN CERTIFICATE-----")},
		{name: "nested", resource: "certs/inner.pem", want: []byte("inner")},
		{name: "empty file", resource: "empty.bin", want: []byte{}},
		{name: "missing", resource: "nope.cer", wantKind: request.KindNotFound},
		{name: "empty name", resource: "", wantKind: request.KindNotFound},
		{name: "escaping name", resource: "../etc/passwd", wantKind: request.KindNotFound},
		{name: "too large", resource: "big.bin", wantKind: request.KindOutOfResources},
		{name: "directory", resource: "certs", wantKind: request.KindIOError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.LoadBytesByName(tt.resource)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, request.KindOf(err))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDefaultsMaxSize(t *testing.T) {
	assert.Equal(t, DefaultMaxSize, New(fstest.MapFS{}, 0).maxSize)
}

func TestNewDirReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, certFile), []byte("der"), 0o600))

	got, err := NewDir(dir).LoadBytesByName(certFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("der"), got)
}
