package request

// Scope selects the caller-owned sections cleared by Cleanup.
type Scope uint8

const (
	ScopeRequest Scope = 1 << iota
	ScopeResponse
	ScopeStatus

	ScopeAll = ScopeRequest | ScopeResponse | ScopeStatus
)

// Has reports whether every section of other is part of s.
func (s Scope) Has(other Scope) bool {
	return s&other == other
}

// Cleanup clears the selected sections. Clearing an already empty section is
// a no-op, so Cleanup may be called any number of times. The trust anchor is
// never touched; it belongs to the caller.
func (r *NetworkRequest) Cleanup(scope Scope) {
	if r == nil {
		return
	}
	if scope.Has(ScopeRequest) {
		r.CleanupRequest()
	}
	if scope.Has(ScopeResponse) {
		r.CleanupResponse()
	}
	if scope.Has(ScopeStatus) {
		r.CleanupStatus()
	}
}

func (r *NetworkRequest) CleanupRequest() {
	r.Request = Input{}
}

func (r *NetworkRequest) CleanupResponse() {
	r.Response = Response{}
}

func (r *NetworkRequest) CleanupStatus() {
	r.Status = Status{}
}

// ReleaseSession closes the HTTP session of the current attempt, if any.
func (r *NetworkRequest) ReleaseSession() {
	if r == nil {
		return
	}
	if r.Session.Transport != nil {
		r.Session.Transport.CloseIdleConnections()
	}
	r.Session = Session{}
}

// Unbind tears down the session and interface binding of the request.
// A pending bounded wait is released with it.
func (r *NetworkRequest) Unbind() {
	if r == nil {
		return
	}
	r.ReleaseSession()
	r.Nic.Wait.Release()
	r.Nic = NicBinding{}
}
