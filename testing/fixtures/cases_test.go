package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/request"
)

func TestDefaultCases(t *testing.T) {
	cases := DefaultCases("http://127.0.0.1:8080/", "server.cer", false)
	require.Len(t, cases, 4)

	assert.Equal(t, CaseSimpleGet, cases[0].Name)
	assert.Equal(t, "http://127.0.0.1:8080/", cases[0].URL)

	assert.Equal(t, "http://127.0.0.1:8080/RedirTest1", cases[1].URL)
	assert.Equal(t, "http://127.0.0.1:8080/RedirTest3", cases[1].BootstrapURL)
	assert.Equal(t, "server.cer", cases[1].TrustAnchor)
	assert.Equal(t, VariantPrimary, cases[1].Variant)
	assert.Equal(t, VariantWorkaround, cases[2].Variant)

	assert.Equal(t, "http://127.0.0.1:8080", cases[3].URL, "no ending slash")

	for _, c := range cases {
		assert.Equal(t, request.KindSuccess, c.ExpectedKind())
	}
	assert.NoError(t, Validate(&Suite{Cases: cases}))

	strict := DefaultCases("http://127.0.0.1:8080", "server.cer", true)
	assert.Equal(t, request.KindInvalidURL, strict[3].ExpectedKind())
	assert.Equal(t, request.KindSuccess, strict[0].ExpectedKind())
}

const suiteYAML = `
name: access
cases:
  - name: simple
    url: http://127.0.0.1:8080/
    expect: Success
  - name: loop
    url: http://127.0.0.1:8080/RedirLoop
    variant: workaround
    method: get
    expect: TooManyRedirects
`

func TestLoad(t *testing.T) {
	suite, err := Load([]byte(suiteYAML))
	require.NoError(t, err)

	assert.Equal(t, "access", suite.Name)
	require.Len(t, suite.Cases, 2)
	assert.Equal(t, VariantPrimary, suite.Cases[0].Variant, "variant defaults to primary")
	assert.Equal(t, VariantWorkaround, suite.Cases[1].Variant)
	assert.Equal(t, request.KindTooManyRedirects, suite.Cases[1].ExpectedKind())
}

func TestLoadRejectsInvalidSuites(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{name: "no cases", yaml: "name: empty\n", wantMsg: "Suite.Cases is required"},
		{name: "missing url", yaml: "cases:\n  - name: a\n    expect: Success\n", wantMsg: "Suite.Cases[0].URL is required"},
		{name: "bad url", yaml: "cases:\n  - name: a\n    url: not a url\n    expect: Success\n", wantMsg: "must be a valid URL"},
		{name: "unknown outcome", yaml: "cases:\n  - name: a\n    url: http://h/\n    expect: Teapot\n", wantMsg: "unknown outcome"},
		{name: "unknown variant", yaml: "cases:\n  - name: a\n    url: http://h/\n    variant: both\n    expect: Success\n", wantMsg: "primary or workaround"},
		{name: "unknown method", yaml: "cases:\n  - name: a\n    url: http://h/\n    method: DELETE\n    expect: Success\n", wantMsg: "unsupported method"},
		{name: "duplicate names", yaml: "cases:\n  - name: a\n    url: http://h/\n    expect: Success\n  - name: a\n    url: http://h/\n    expect: Success\n", wantMsg: "duplicate case name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("cases: [\n"))
	assert.ErrorContains(t, err, "failed to parse fixtures")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - name: a\n    url: http://h/\n    expect: Success\n"), 0o600))

	suite, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, suite.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read fixtures file")
}
