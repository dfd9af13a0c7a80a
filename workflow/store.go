package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	// ErrSnapshotNotFound is returned by stores when no snapshot exists.
	ErrSnapshotNotFound = errors.New("workflow snapshot not found")
	// ErrSnapshotCorrupt is returned by stores when a snapshot exists but
	// cannot be decoded.
	ErrSnapshotCorrupt = errors.New("workflow snapshot corrupt")
)

// SnapshotStore persists the current workflow as a single document with
// last-writer-wins semantics. Implementations must tolerate concurrent Save
// calls from one process; the engine additionally serializes its own writes
// under a mutex.
type SnapshotStore interface {
	// Save atomically overwrites any prior snapshot with the full context.
	Save(ctx context.Context, wf *WorkflowContext) error
	// Load reconstructs the persisted context. It returns ErrSnapshotNotFound
	// when nothing is stored and ErrSnapshotCorrupt when the stored document
	// cannot be decoded.
	Load(ctx context.Context) (*WorkflowContext, error)
	// Clear deletes the snapshot. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	// Close releases store resources.
	Close() error
}

// MemorySnapshotStore keeps the snapshot in process memory. Intended for
// tests and single-shot runs where crash recovery is not needed.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Save stores a deep copy of the context via its JSON form, so later
// mutations of the live context never leak into the snapshot.
func (s *MemorySnapshotStore) Save(ctx context.Context, wf *WorkflowContext) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) Load(ctx context.Context) (*WorkflowContext, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()

	if data == nil {
		return nil, ErrSnapshotNotFound
	}
	var wf WorkflowContext
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, ErrSnapshotCorrupt
	}
	return &wf, nil
}

func (s *MemorySnapshotStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}

func (s *MemorySnapshotStore) Close() error { return nil }

var _ SnapshotStore = (*MemorySnapshotStore)(nil)
