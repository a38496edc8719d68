package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gaborage/go-netreq/logger"
	"github.com/gaborage/go-netreq/trace"
)

// SetupMiddlewares registers the fixture server middlewares: request ids,
// request id propagation, access logging, panic recovery and the body limit.
func SetupMiddlewares(e *echo.Echo, log logger.Logger) {
	// Request ID; honours an incoming X-Request-ID sent by the processor
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		TargetHeader: echo.HeaderXRequestID,
	}))

	e.Use(RequestContext())

	e.Use(Logger(log))

	// Recovery
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Error().
				Err(err).
				Str("request_id", safeGetRequestID(c)).
				Bytes("stack", stack).
				Msg("Panic recovered")
			return err
		},
	}))

	e.Use(middleware.BodyLimit(MaxContentLength))
}

// RequestContext stores the request id in the request context so handler
// logs carry it.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := safeGetRequestID(c); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(trace.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// Logger logs one line per request with its status and latency. Server
// errors log at error level, client errors at warn.
func Logger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			l := log.WithContext(req.Context())

			var event logger.LogEvent
			switch {
			case status >= 500:
				event = l.Error()
			case status >= 400:
				event = l.Warn()
			default:
				event = l.Info()
			}

			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Int64("bytes_out", c.Response().Size).
				Msg("Request completed")
			return nil
		}
	}
}

// safeGetRequestID extracts the request id from the response, falling back
// to the request header.
func safeGetRequestID(c echo.Context) string {
	if resp := c.Response(); resp != nil {
		if id := resp.Header().Get(echo.HeaderXRequestID); id != "" {
			return id
		}
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
