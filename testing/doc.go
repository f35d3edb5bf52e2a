// Package testing provides test utilities for the jacobi module.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - Connect: Extra client connections, one per simulated worker process
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger that writes through t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    jacobitest "github.com/arloliu/jacobi/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    ns, nc := jacobitest.StartEmbeddedNATS(t)
//	    other := jacobitest.Connect(t, ns)
//	}
package testing
