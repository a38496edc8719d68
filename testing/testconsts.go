package testing

// Constants shared by tests that run the processor against loopback fixtures.
const (
	// TestLoopbackAddress is the local address loopback sessions are bound to.
	TestLoopbackAddress = "127.0.0.1"
	// TestInterfaceName names the fake interface tests enumerate.
	TestInterfaceName = "lo"
	// TestTrustAnchorName is the resource name the fixture certificate is stored under.
	TestTrustAnchorName = "fixture.cer"
	// TestLoggerLevelDisabled completely disables logging in tests.
	TestLoggerLevelDisabled = "disabled"
)
