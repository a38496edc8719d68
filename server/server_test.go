package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-netreq/config"
	"github.com/gaborage/go-netreq/loader"
	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/request"
)

const testSecureBase = "https://fixture.example.com"

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	cfg := &config.Config{
		App:    config.AppConfig{Name: "netreq-fixture", Env: config.EnvDevelopment},
		Server: config.ServerConfig{Address: "127.0.0.1:0", SecureBaseURL: testSecureBase + "/"},
	}
	return New(cfg, logger.Nop(), opts...)
}

func serve(s *Server, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHello(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Hello, World!"))
	assert.Contains(t, rec.Body.String(), "192.0.2.1")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestRequestIDIsEchoed(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, "/", nil, map[string]string{echo.HeaderXRequestID: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
}

func TestRedirectChain(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, RouteRedirTest1, nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, testSecureBase+RouteRedirTest2, rec.Header().Get(echo.HeaderLocation))

	rec = serve(s, http.MethodGet, RouteRedirTest2, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(DefaultDocuments()[DocRedirTestResponse]), rec.Body.String())
	assert.Equal(t, headerMustRevalidate, rec.Header().Get(echo.HeaderCacheControl))

	rec = serve(s, http.MethodGet, RouteRedirTest3, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RedirTest3")
}

func TestRedirectUsesRequestHostWithoutSecureBase(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Name: "fixture"}}
	s := New(cfg, logger.Nop())

	rec := serve(s, http.MethodGet, "http://10.0.0.9:8080"+RouteRedirTest1, nil, nil)
	assert.Equal(t, "https://10.0.0.9:8080"+RouteRedirTest2, rec.Header().Get(echo.HeaderLocation))

	override := New(cfg, logger.Nop(), WithSecureBaseURL("https://other.example/"))
	rec = serve(override, http.MethodGet, RouteRedirTest1, nil, nil)
	assert.Equal(t, "https://other.example"+RouteRedirTest2, rec.Header().Get(echo.HeaderLocation))
}

func TestRedirLoop(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodGet, RouteRedirLoop, nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, RouteRedirLoop, rec.Header().Get(echo.HeaderLocation))
}

func TestMissingDocumentIsServiceUnavailable(t *testing.T) {
	s := newTestServer(t, WithStore(NewMemoryStore(nil, nil)))
	rec := serve(s, http.MethodGet, RouteRedirTest2, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), DocRedirTestResponse)
}

func TestBootstrapFlow(t *testing.T) {
	store := NewMemoryStore(DefaultDocuments(), nil)
	s := newTestServer(t, WithStore(store))
	jsonHeader := map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON + "; charset=UTF-8"}
	body := []byte(`{"MachineId":"1234"}`)

	rec := serve(s, http.MethodPost, RouteBootstrap, body, jsonHeader)
	require.Equal(t, http.StatusAccepted, rec.Code)
	location := rec.Header().Get(echo.HeaderLocation)
	assert.True(t, strings.HasPrefix(location, bootstrapStatusPrefix), location)

	stored, err := store.Load(DocBootstrapRequest)
	require.NoError(t, err)
	assert.Equal(t, body, stored)

	rec = serve(s, http.MethodGet, location, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(DefaultDocuments()[DocBootstrapResponse]), rec.Body.String())

	require.NoError(t, store.Save(DocBootstrapExpected, body))
	rec = serve(s, http.MethodGet, location, nil, nil)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestBootstrapRejectsNonJSON(t *testing.T) {
	rec := serve(newTestServer(t), http.MethodPost, RouteBootstrap, []byte("x"),
		map[string]string{echo.HeaderContentType: echo.MIMETextPlain})
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestBootstrapBodyLimit(t *testing.T) {
	big := bytes.Repeat([]byte("a"), 17*1024)
	rec := serve(newTestServer(t), http.MethodPost, RouteBootstrap, big,
		map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRecoveryFlow(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, http.MethodPost, RouteRecovery, []byte(`{}`),
		map[string]string{echo.HeaderContentType: echo.MIMEApplicationJSON})
	require.Equal(t, http.StatusAccepted, rec.Code)
	location := rec.Header().Get(echo.HeaderLocation)
	assert.True(t, strings.HasPrefix(location, testSecureBase+recoveryStatusPrefix), location)

	rec = serve(s, http.MethodGet, strings.TrimPrefix(location, testSecureBase), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"packets":[]}`, rec.Body.String())
}

func TestBootShell(t *testing.T) {
	fallback := loader.New(fstest.MapFS{
		DocShell:     {Data: []byte("small-shell")},
		DocShellFull: {Data: []byte("full-shell")},
	}, 0)
	s := newTestServer(t, WithStore(NewMemoryStore(nil, fallback)))

	rec := serve(s, http.MethodGet, RouteBootShell, nil, map[string]string{"User-Agent": "UefiHttpBoot/1.0"})
	assert.Equal(t, "full-shell", rec.Body.String())
	assert.Equal(t, mimeEFI, rec.Header().Get(echo.HeaderContentType))

	rec = serve(s, http.MethodGet, RouteBootShell, nil, map[string]string{"User-Agent": "curl/8"})
	assert.Equal(t, "small-shell", rec.Body.String())

	empty := newTestServer(t)
	rec = serve(empty, http.MethodGet, RouteBootShell, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ServerError. Unable to find shell Shell.efi", rec.Body.String())
}

func TestDfciRequest(t *testing.T) {
	store := NewMemoryStore(map[string][]byte{
		"dfci/m1/Dfci_Apply_Identity.bin": []byte{0x01, 0x02},
	}, nil)
	s := newTestServer(t, WithStore(store))
	agent := map[string]string{"User-Agent": "DFCI-Agent"}

	tests := []struct {
		name     string
		method   string
		target   string
		headers  map[string]string
		body     []byte
		wantCode int
		wantBody string
	}{
		{name: "unknown client", method: http.MethodGet, target: "/DfciRequest/m1/Identity", wantCode: http.StatusServiceUnavailable},
		{name: "invalid type", method: http.MethodGet, target: "/DfciRequest/m1/Bogus", headers: agent, wantCode: http.StatusOK, wantBody: "DFCI Error. Invalid request type"},
		{name: "unknown system", method: http.MethodGet, target: "/DfciRequest/m2/Identity", headers: agent, wantCode: http.StatusOK, wantBody: "DFCI Error. Unknown system"},
		{name: "current not requestable", method: http.MethodGet, target: "/DfciRequest/m1/Current", headers: agent, wantCode: http.StatusOK, wantBody: "DFCI Error. Current cannot be requested"},
		{name: "apply packet", method: http.MethodGet, target: "/DfciRequest/m1/Identity", headers: agent, wantCode: http.StatusOK, wantBody: "\x01\x02"},
		{name: "upload result", method: http.MethodPut, target: "/DfciRequest/m1/Current", headers: agent, body: []byte("<xml/>"), wantCode: http.StatusOK, wantBody: "Result uploaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.method, tt.target, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}

	uploaded, err := store.Load("dfci/m1/Dfci_Result_Current.xml")
	require.NoError(t, err)
	assert.Equal(t, []byte("<xml/>"), uploaded)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(map[string][]byte{"a": []byte("1")}, nil)

	data, err := s.Load("a")
	require.NoError(t, err)
	data[0] = 'x'
	again, _ := s.Load("a")
	assert.Equal(t, []byte("1"), again, "loaded documents must be copies")

	_, err = s.Load("missing")
	assert.True(t, request.IsKind(err, request.KindNotFound))
	assert.False(t, s.Has("missing"))

	assert.Error(t, s.Save("", nil))
	require.NoError(t, s.Save("b", []byte("2")))
	assert.True(t, s.Has("b"))
}
