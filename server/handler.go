package server

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-netreq/request"
)

// Fixture routes.
const (
	RouteHello             = "/"
	RouteBootShell         = "/BootShell"
	RouteDfciRequest       = "/DfciRequest/:machineId/:requestType"
	RouteBootstrap         = "/ztd/noauth/dfci/recovery-bootstrap/"
	RouteBootstrapStatus   = "/ztd/unauth/dfci/recovery-bootstrap-status/:requestId"
	RouteRecovery          = "/ztd/unauth/dfci/recovery-packets/"
	RouteRecoveryStatus    = "/ztd/unauth/dfci/recovery-packets-status/:requestId"
	RouteRedirTest1        = "/RedirTest1"
	RouteRedirTest2        = "/RedirTest2"
	RouteRedirTest3        = "/RedirTest3"
	RouteRedirLoop         = "/RedirLoop"
	bootstrapStatusPrefix  = "/ztd/unauth/dfci/recovery-bootstrap-status/"
	recoveryStatusPrefix   = "/ztd/unauth/dfci/recovery-packets-status/"
	httpBootUserAgentToken = "UefiHttpBoot"
	dfciAgentToken         = "DFCI-Agent"
	mimeEFI                = "application/efi"
	headerMustRevalidate   = "must-revalidate"
)

var dfciRequestTypes = []string{"Identity", "Identity2", "Permissions", "Permissions2", "Settings", "Settings2", dfciCurrentRequestType}

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET(RouteHello, s.hello)
	e.GET(RouteBootShell, s.bootShell)
	e.GET(RouteDfciRequest, s.dfciRequest)
	e.PUT(RouteDfciRequest, s.dfciRequest)
	e.POST(RouteBootstrap, s.bootstrap)
	e.GET(RouteBootstrapStatus, s.bootstrapStatus)
	e.POST(RouteRecovery, s.recovery)
	e.GET(RouteRecoveryStatus, s.recoveryStatus)
	e.GET(RouteRedirTest1, s.redirTest1)
	e.GET(RouteRedirTest2, s.document(DocRedirTestResponse))
	e.GET(RouteRedirTest3, s.document(DocRedirTest3Response))
	e.GET(RouteRedirLoop, s.redirLoop)
}

func (s *Server) hello(c echo.Context) error {
	msg := "Hello, World! netreq fixture server serving BootShell and DfciRequest.\r\rRequest from " + c.RealIP()
	return c.String(http.StatusOK, msg)
}

// bootShell serves the shell image matching the client: HTTP boot clients
// get the full shell.
func (s *Server) bootShell(c echo.Context) error {
	name := DocShell
	if strings.Contains(c.Request().UserAgent(), httpBootUserAgentToken) {
		name = DocShellFull
	}

	data, err := s.store.Load(name)
	if err != nil {
		return c.String(http.StatusOK, "ServerError. Unable to find shell "+name)
	}
	return c.Blob(http.StatusOK, mimeEFI, data)
}

// dfciRequest stores uploaded results on PUT and hands out apply packets on
// GET, per machine.
func (s *Server) dfciRequest(c echo.Context) error {
	if !strings.Contains(c.Request().UserAgent(), dfciAgentToken) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "DFCI Error. Unexpected client")
	}

	machineID := c.Param("machineId")
	requestType := c.Param("requestType")
	if !slices.Contains(dfciRequestTypes, requestType) {
		return c.String(http.StatusOK, "DFCI Error. Invalid request type")
	}

	dir := dfciMachineDirPrefix + machineID + "/"
	if c.Request().Method == http.MethodPut {
		name := dfciResultPrefix + requestType + ".bin"
		if requestType == dfciCurrentRequestType {
			name = dfciResultPrefix + requestType + ".xml"
		}
		body, err := readBody(c)
		if err != nil {
			return err
		}
		if err := s.store.Save(dir+name, body); err != nil {
			return err
		}
		return c.String(http.StatusOK, "Result uploaded")
	}

	if requestType == dfciCurrentRequestType {
		return c.String(http.StatusOK, "DFCI Error. Current cannot be requested")
	}
	data, err := s.store.Load(dir + dfciApplyPrefix + requestType + ".bin")
	if err != nil {
		if request.IsKind(err, request.KindNotFound) {
			return c.String(http.StatusOK, "DFCI Error. Unknown system")
		}
		return err
	}
	setNoCache(c)
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, data)
}

// bootstrap accepts a JSON bootstrap request and points the device at the
// status resource it should poll.
func (s *Server) bootstrap(c echo.Context) error {
	return s.acceptJSON(c, DocBootstrapRequest, bootstrapStatusPrefix)
}

// bootstrapStatus answers with the null response when the stored request
// matches the expected one, meaning no certificate update is needed.
func (s *Server) bootstrapStatus(c echo.Context) error {
	name := DocBootstrapResponse
	got, gotErr := s.store.Load(DocBootstrapRequest)
	want, wantErr := s.store.Load(DocBootstrapExpected)
	if gotErr == nil && wantErr == nil && bytes.Equal(got, want) {
		name = DocBootstrapNull
	}
	return s.serveJSON(c, name)
}

// recovery accepts a JSON recovery request. The status location it returns
// is absolute and on the secure origin.
func (s *Server) recovery(c echo.Context) error {
	return s.acceptJSON(c, DocRecoveryRequest, s.secureBase(c)+recoveryStatusPrefix)
}

func (s *Server) recoveryStatus(c echo.Context) error {
	return s.serveJSON(c, DocRecoveryResponse)
}

// redirTest1 redirects a plain HTTP client to the secure origin.
func (s *Server) redirTest1(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderLocation, s.secureBase(c)+RouteRedirTest2)
	return c.JSON(http.StatusFound, map[string]any{})
}

func (s *Server) redirLoop(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderLocation, RouteRedirLoop)
	return c.NoContent(http.StatusFound)
}

func (s *Server) document(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.serveJSON(c, name)
	}
}

func (s *Server) acceptJSON(c echo.Context, docName, statusPrefix string) error {
	if !isJSON(c.Request().Header.Get(echo.HeaderContentType)) {
		return c.JSON(http.StatusNotAcceptable, map[string]any{})
	}

	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := s.store.Save(docName, body); err != nil {
		return err
	}

	s.logger.WithContext(c.Request().Context()).Info().
		Str("document", docName).
		Int("bytes", len(body)).
		Msg("Stored device request")

	c.Response().Header().Set(echo.HeaderLocation, statusPrefix+uuid.NewString())
	return c.JSON(http.StatusAccepted, map[string]any{})
}

func (s *Server) serveJSON(c echo.Context, name string) error {
	data, err := s.store.Load(name)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("unable to read %s: %v", name, err))
	}
	setNoCache(c)
	return c.JSONBlob(http.StatusOK, data)
}

// secureBase is the configured https origin, or the request host over https.
func (s *Server) secureBase(c echo.Context) string {
	if s.secureBaseURL != "" {
		return s.secureBaseURL
	}
	return "https://" + c.Request().Host
}

func setNoCache(c echo.Context) {
	c.Response().Header().Set(echo.HeaderCacheControl, headerMustRevalidate)
	c.Response().Header().Set("Pragma", headerMustRevalidate)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == echo.MIMEApplicationJSON
}

func readBody(c echo.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(c.Request().Body); err != nil {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large").SetInternal(err)
	}
	return buf.Bytes(), nil
}
