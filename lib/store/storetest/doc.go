// Package storetest provides a standardised conformance test suite for
// implementations of store.Source and store.Destination.
//
// The suite checks the properties the replication engine relies on: cursor
// based scanning terminates and visits every key, exports of missing keys are
// empty, ttls are reported in milliseconds, plain restores refuse to overwrite
// (with a RetCKeyBusy error) and replacing restores overwrite.
//
// Example usage:
//
//	storetest.RunStoreTests(t, "MyStore", func(t testing.TB) storetest.Backend {
//		return newMyBackend(t)
//	})
package storetest
