// Package http opens the HTTP(S) session of a single request attempt and
// performs the exchange.
//
// Sessions
//   - One session per attempt. It is opened on the dialer bound to the
//     request's interface and released before Perform returns.
//   - Connections are IPv4 only and speak HTTP/1.1.
//   - A trust anchor on the request replaces the system roots for https
//     targets. It may be PEM or DER encoded.
//
// Redirects
//   - Redirects are never followed. A 3xx response is returned as is and the
//     caller decides what to do with its Location header.
//
// Errors
//   - Perform only fails for transport-level problems. Every failure is a
//     *request.Error: InvalidUrl, ConnectionFailed, TlsTrustFailure,
//     ProtocolError, OutOfResources or Canceled.
//   - Any HTTP status, including 4xx and 5xx, is a completed exchange.
package http
