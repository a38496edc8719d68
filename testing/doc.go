// Package testing provides testing utilities for the request processor and
// the tools built around it.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// platform collaborators (nic.Source, address.Platform) and of the processor
// entry points.
//
// # Fixtures
//
// The fixtures subpackage describes request scenarios: the default access
// cases and YAML suites validated before they are run.
//
// # Usage
//
//	import (
//		"github.com/gaborage/go-netreq/testing/mocks"
//		"github.com/gaborage/go-netreq/testing/fixtures"
//	)
package testing
