package store

import (
	"context"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Export is the raw result of reading a single key from a source: the serialized
// value as produced by the store's dump primitive and the remaining time to live
// in milliseconds as reported by the store (negative values are store sentinels
// for "no expiry" or "no such key").
// An empty Payload means that the key did not exist at the time of the read.
type Export struct {
	Payload []byte
	PTTL    int64
}

// ServerInfo holds the parts of a store's self description that the replication
// engine cares about.
type ServerInfo struct {
	// Version is the version string reported by the store (e.g. "7.2.4"). It may be empty.
	Version string
	// ClusterEnabled reports whether the store is a member of a cluster.
	ClusterEnabled bool
}

// Source is the read-only view of a single shard that keys are copied from.
// All methods must be safe for concurrent use.
type Source interface {
	// Scan returns the next batch of up to count key names starting at cursor
	// and the cursor to continue from. Scanning starts with cursor 0 and is complete
	// once the returned cursor is 0 again. A non-empty match is a store-side glob filter.
	Scan(ctx context.Context, cursor uint64, match string, count int64) (next uint64, keys []string, err error)
	// Export reads the serialized value and remaining ttl for every key in one round trip.
	// The result has exactly one entry per key, in the same order.
	Export(ctx context.Context, keys []string) (exports []Export, err error)
}

// Destination is the single logical store that keys are copied into.
// All methods must be safe for concurrent use; pipelines are not.
type Destination interface {
	// Info returns version and cluster information about the destination.
	Info(ctx context.Context) (info ServerInfo, err error)
	// Exists checks for every key whether it exists, in one round trip.
	// The result has exactly one entry per key, in the same order.
	Exists(ctx context.Context, keys []string) (found []bool, err error)
	// Pipeline starts a new, non-transactional pipeline.
	Pipeline() Pipeline
}

// Pipeline queues write operations against a Destination and sends them in one
// network round trip. A Pipeline is owned by a single goroutine.
type Pipeline interface {
	// Delete queues the removal of a key.
	Delete(key string)
	// Restore queues the creation of a key from a serialized value. The operation
	// fails with a RetCKeyBusy error if the key already exists.
	Restore(key string, ttlMs int64, payload []byte)
	// RestoreReplace queues the creation of a key from a serialized value,
	// replacing any existing value.
	RestoreReplace(key string, ttlMs int64, payload []byte)
	// Len returns the number of queued operations.
	Len() int
	// Exec sends all queued operations and returns the first error encountered.
	Exec(ctx context.Context) (err error)
	// ExecEach sends all queued operations and returns one error slot per
	// queued operation (nil on success). The returned error is only set if
	// the round trip as a whole failed.
	ExecEach(ctx context.Context) (results []error, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the native error of the store.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying store error (may be nil)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying store error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new StoreError with the given code for a native store error.
func WrapError(code RetCode, err error) *Error {
	return &Error{
		Code: code,
		Msg:  err.Error(),
		Err:  err,
	}
}

// CodeOf returns the return code of err, RetCSuccess for nil
// and RetCInternalError for errors that are not a *Error.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return RetCInternalError
}

// IsKeyBusy reports whether err means that a restore target already exists.
func IsKeyBusy(err error) bool {
	return err != nil && CodeOf(err) == RetCKeyBusy
}

// IsLoading reports whether err means that the store is still loading its dataset.
func IsLoading(err error) bool {
	return err != nil && CodeOf(err) == RetCLoading
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCKeyBusy                             // 4: The target key of a restore already exists.
	RetCLoading                             // 5: The store is loading its dataset into memory.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCKeyBusy:
		return "KeyBusy"
	case RetCLoading:
		return "Loading"
	default:
		return "Unknown"
	}
}
