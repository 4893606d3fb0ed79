package streamstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict is returned when a competing writer won: either the
	// expected version did not match or the backend rejected a conditional write.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrStreamNotFound is returned when reading a stream that has no partition.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrAggregateNotFound is returned when loading an aggregate without events.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrCorruptProjectionState is returned when a projection cannot find the
	// read-model row its aggregate must have.
	ErrCorruptProjectionState = errors.New("corrupt projection state")

	// ErrUnhandledCommand is returned when no handler is registered for a command kind.
	ErrUnhandledCommand = errors.New("unhandled command")

	// ErrUnhandledQuery is returned when no handler is registered for a query kind.
	ErrUnhandledQuery = errors.New("unhandled query")

	// ErrDuplicateHandler is returned when registering a second handler for a command or query kind.
	ErrDuplicateHandler = errors.New("duplicate handler")

	// ErrUnknownEventType is returned when a stored discriminator has no registered decoder.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrBackendUnavailable marks transport, timeout and driver failures of a Backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrConditionFailed is returned by a Backend when a row operation of an atomic
	// write lost its condition check.
	ErrConditionFailed = errors.New("condition failed")

	// ErrBusinessRuleViolation marks domain rejections raised by command handlers.
	ErrBusinessRuleViolation = errors.New("business rule violation")

	// ErrStreamCorrupted is returned when the stored event rows of a stream are not
	// the gap-free sequence 1..N.
	ErrStreamCorrupted = errors.New("stream corrupted")

	// ErrScanUnsupported is returned when a cross-partition query hits a backend
	// that does not implement PartitionScanner.
	ErrScanUnsupported = errors.New("cross-partition scan unsupported")

	// ErrInvalidEventBatch is returned when a batch cannot be appended as given.
	ErrInvalidEventBatch = errors.New("invalid event batch")
)

// StreamRevisionConflictError reports an optimistic concurrency failure on a stream.
// ActualVersion is zero when the conflict was detected by the backend at commit time.
type StreamRevisionConflictError struct {
	Stream          string
	ExpectedVersion uint64
	ActualVersion   uint64
	Err             error
}

func (s *StreamRevisionConflictError) Error() string {
	if s.Err != nil {
		return fmt.Sprintf("concurrency conflict on stream %q: expected version %d: %v", s.Stream, s.ExpectedVersion, s.Err)
	}
	return fmt.Sprintf("concurrency conflict on stream %q: (expected version %d, actual %d)", s.Stream, s.ExpectedVersion, s.ActualVersion)
}

func (s *StreamRevisionConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func (s *StreamRevisionConflictError) Unwrap() error {
	return s.Err
}

// BackendError wraps a failure of the storage backend that is not a condition failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// WrapBackendError marks err as a backend failure of op. Nil stays nil. Condition
// failures, rejected batches and errors already marked are returned unchanged.
func WrapBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConditionFailed) || errors.Is(err, ErrInvalidEventBatch) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// storeErrors are the kinds raised by the store layers. A decider returning one
// of them keeps its kind.
var storeErrors = []error{
	ErrBackendUnavailable,
	ErrConcurrencyConflict,
	ErrAggregateNotFound,
	ErrStreamNotFound,
	ErrCorruptProjectionState,
	ErrUnknownEventType,
	ErrStreamCorrupted,
	ErrScanUnsupported,
	ErrInvalidEventBatch,
}

func isStoreError(err error) bool {
	for _, kind := range storeErrors {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
