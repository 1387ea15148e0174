package stage

import (
	"context"
	"coveriq/internal/logging"
	"fmt"
	"sync"
	"time"
)

type key struct {
	session string
	stage   Stage
}

// MemoryStore keeps every version in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[key][]Entry
	sessions []string // in order of first Put
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[key][]Entry)}
}

func (m *MemoryStore) Put(_ context.Context, session string, st Stage, value interface{}) (int64, error) {
	if err := checkKey(session, st); err != nil {
		return 0, err
	}
	data, err := encode(value)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{session, st}
	if !m.known(session) {
		m.sessions = append(m.sessions, session)
	}
	version := int64(len(m.versions[k]) + 1)
	m.versions[k] = append(m.versions[k], Entry{
		Session:   session,
		Stage:     st,
		Version:   version,
		Data:      append([]byte(nil), data...),
		UpdatedAt: time.Now().UTC(),
	})
	logging.StoreDebug("Stored %s v%d for session %s (%d bytes)", st, version, session, len(data))
	return version, nil
}

func (m *MemoryStore) Get(ctx context.Context, session string, st Stage) (*Entry, error) {
	return m.GetVersion(ctx, session, st, 0)
}

// GetVersion returns the given version; version 0 means latest.
func (m *MemoryStore) GetVersion(_ context.Context, session string, st Stage, version int64) (*Entry, error) {
	if err := checkKey(session, st); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.versions[key{session, st}]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, st)
	}
	if version == 0 {
		version = int64(len(list))
	}
	if version < 1 || version > int64(len(list)) {
		return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, st, version)
	}
	e := list[version-1]
	e.Data = append([]byte(nil), e.Data...)
	return &e, nil
}

// Sessions lists sessions with stored data, oldest first.
func (m *MemoryStore) Sessions(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.sessions...), nil
}

func (m *MemoryStore) known(session string) bool {
	for _, st := range All() {
		if len(m.versions[key{session, st}]) > 0 {
			return true
		}
	}
	return false
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
