package fixtures

import (
	"context"
	"sync"

	es "github.com/terraskye/streamstore"
	"github.com/terraskye/streamstore/backend/memory"
)

var _ es.Backend = (*BackendSpy)(nil)

// BackendSpy wraps a Backend (an in-memory one by default), counting calls,
// capturing the last atomic write and allowing failures to be injected.
type BackendSpy struct {
	mu   sync.Mutex
	next es.Backend

	// Function overrides for custom behavior
	TryOpenPartitionFn func(ctx context.Context, key string) (es.Partition, error)
	WriteAtomicFn      func(ctx context.Context, key string, ops []es.RowOperation) error
	QueryFn            func(ctx context.Context, key, prefix string) ([]es.Row, error)

	// BeforeWrite runs before each atomic write reaches the wrapped backend.
	BeforeWrite func(ctx context.Context, key string, ops []es.RowOperation)

	// Call tracking
	OpenCalls  int
	WriteCalls int
	QueryCalls int

	// Captured arguments from last call
	LastWriteKey string
	LastWriteOps []es.RowOperation
}

// NewBackendSpy wraps next. A nil next wraps a fresh memory backend.
func NewBackendSpy(next es.Backend) *BackendSpy {
	if next == nil {
		next = memory.NewBackend()
	}
	return &BackendSpy{next: next}
}

// FailOnWrite makes every atomic write fail with err.
func (s *BackendSpy) FailOnWrite(err error) *BackendSpy {
	s.WriteAtomicFn = func(context.Context, string, []es.RowOperation) error { return err }
	return s
}

// FailOnOpen makes every partition open fail with err.
func (s *BackendSpy) FailOnOpen(err error) *BackendSpy {
	s.TryOpenPartitionFn = func(context.Context, string) (es.Partition, error) { return es.Partition{}, err }
	return s
}

// TryOpenPartition implements es.Backend.
func (s *BackendSpy) TryOpenPartition(ctx context.Context, key string) (es.Partition, error) {
	s.mu.Lock()
	s.OpenCalls++
	s.mu.Unlock()

	if s.TryOpenPartitionFn != nil {
		return s.TryOpenPartitionFn(ctx, key)
	}
	return s.next.TryOpenPartition(ctx, key)
}

// WriteAtomic implements es.Backend.
func (s *BackendSpy) WriteAtomic(ctx context.Context, key string, ops []es.RowOperation) error {
	s.mu.Lock()
	s.WriteCalls++
	s.LastWriteKey = key
	s.LastWriteOps = append([]es.RowOperation(nil), ops...)
	s.mu.Unlock()

	if s.BeforeWrite != nil {
		s.BeforeWrite(ctx, key, ops)
	}
	if s.WriteAtomicFn != nil {
		return s.WriteAtomicFn(ctx, key, ops)
	}
	return s.next.WriteAtomic(ctx, key, ops)
}

// QueryByPartitionAndKeyPrefix implements es.Backend.
func (s *BackendSpy) QueryByPartitionAndKeyPrefix(ctx context.Context, key, prefix string) ([]es.Row, error) {
	s.mu.Lock()
	s.QueryCalls++
	s.mu.Unlock()

	if s.QueryFn != nil {
		return s.QueryFn(ctx, key, prefix)
	}
	return s.next.QueryByPartitionAndKeyPrefix(ctx, key, prefix)
}

// QueryByKeyPrefix forwards to the wrapped backend when it can scan.
func (s *BackendSpy) QueryByKeyPrefix(ctx context.Context, prefix string) ([]es.Row, error) {
	scanner, ok := s.next.(es.PartitionScanner)
	if !ok {
		return nil, es.ErrScanUnsupported
	}
	return scanner.QueryByKeyPrefix(ctx, prefix)
}
