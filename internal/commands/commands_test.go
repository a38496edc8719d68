package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/request"
	"github.com/gaborage/go-netreq/testing/fixtures"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "netreq", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(cmd)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, NewVersionCommand("v1.2.3"), "version")
	require.NoError(t, err)

	assert.Equal(t, "netreq version v1.2.3\nBuilt with "+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH+"\n", out)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRunCommand()
	for _, name := range []string{"config", "env-file", "fixtures", "base-url", "resources", "trust-anchor", "parallel", "verbose", "no-color"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, fixtures.DefaultTrustAnchorName, cmd.Flags().Lookup("trust-anchor").DefValue)
}

func TestRunCommandRequiresCases(t *testing.T) {
	_, err := execute(t, NewRunCommand(), "run", "--env-file", "")
	assert.ErrorIs(t, err, errNoCases)
}

func TestRunCommandRejectsInvalidFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases:\n  - name: a\n    expect: Teapot\n"), 0o600))

	_, err := execute(t, NewRunCommand(), "run", "--env-file", "", "--fixtures", path)

	var verr *fixtures.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestRunCommandMissingConfigFile(t *testing.T) {
	_, err := execute(t, NewRunCommand(), "run", "--env-file", "",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--base-url", "http://127.0.0.1:8080")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestSelectCases(t *testing.T) {
	title, cases, err := selectCases(&RunOptions{BaseURL: "http://192.0.2.10:8080", TrustAnchor: "server.cer"}, true)
	require.NoError(t, err)

	assert.Equal(t, "http://192.0.2.10:8080", title)
	require.Len(t, cases, 4)
	assert.Equal(t, request.KindInvalidURL, cases[3].ExpectedKind())
	assert.Equal(t, "server.cer", cases[1].TrustAnchor)
}

func TestServeCommandRequiresKeyWithCert(t *testing.T) {
	_, err := execute(t, NewServeCommand(), "serve", "--env-file", "", "--cert", "server.crt")
	assert.ErrorContains(t, err, "--cert and --key must be given together")
}
