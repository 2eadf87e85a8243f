package memory

import (
	"context"
	"sync"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// FlowStore implements ports.FlowStore and ports.FlowPublisher in memory.
// Versions are immutable once published.
type FlowStore struct {
	mu       sync.RWMutex
	versions map[string]map[int]*domain.Flow
	latest   map[string]int
}

// NewFlowStore creates a new in-memory flow store.
func NewFlowStore() *FlowStore {
	return &FlowStore{
		versions: make(map[string]map[int]*domain.Flow),
		latest:   make(map[string]int),
	}
}

// Put publishes a flow version. Re-publishing an existing version replaces
// it only if no session could have seen it yet, which the caller must
// guarantee; normally editors bump the version on every publish.
func (s *FlowStore) Put(ctx context.Context, flow *domain.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVersion, ok := s.versions[flow.ID]
	if !ok {
		byVersion = make(map[int]*domain.Flow)
		s.versions[flow.ID] = byVersion
	}
	byVersion[flow.Version] = flow
	if flow.Version > s.latest[flow.ID] {
		s.latest[flow.ID] = flow.Version
	}
	return nil
}

// Get retrieves the latest published version of a flow.
func (s *FlowStore) Get(ctx context.Context, flowID string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.latest[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return s.versions[flowID][version], nil
}

// GetVersion retrieves one pinned version of a flow.
func (s *FlowStore) GetVersion(ctx context.Context, flowID string, version int) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.versions[flowID][version]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return flow, nil
}
