// Package file implements a read-only flow store over a directory of flow
// documents. It backs local development and the validate command; deployed
// gateways read flows from redis.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/schema"
)

// Store implements ports.FlowStore from flow documents on disk.
// All documents are parsed and validated up front; a broken file fails the
// whole load rather than surfacing mid-dialog.
type Store struct {
	versions map[string]map[int]*domain.Flow
	latest   map[string]int
}

// New loads every .yaml/.yml/.json flow document under dir.
func New(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read flow directory: %w", err)
	}

	store := &Store{
		versions: make(map[string]map[int]*domain.Flow),
		latest:   make(map[string]int),
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var flow *domain.Flow
		if ext == ".json" {
			flow, err = schema.ParseJSON(data)
		} else {
			flow, err = schema.ParseYAML(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		byVersion, ok := store.versions[flow.ID]
		if !ok {
			byVersion = make(map[int]*domain.Flow)
			store.versions[flow.ID] = byVersion
		}
		if _, dup := byVersion[flow.Version]; dup {
			return nil, fmt.Errorf("%s: flow %q version %d defined twice", path, flow.ID, flow.Version)
		}
		byVersion[flow.Version] = flow
		if flow.Version > store.latest[flow.ID] {
			store.latest[flow.ID] = flow.Version
		}
	}

	return store, nil
}

// Get retrieves the latest loaded version of a flow.
func (s *Store) Get(ctx context.Context, flowID string) (*domain.Flow, error) {
	version, ok := s.latest[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return s.versions[flowID][version], nil
}

// GetVersion retrieves one pinned version of a flow.
func (s *Store) GetVersion(ctx context.Context, flowID string, version int) (*domain.Flow, error) {
	flow, ok := s.versions[flowID][version]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	return flow, nil
}

// FlowIDs lists loaded flow IDs, for the validate and simulate commands.
func (s *Store) FlowIDs() []string {
	ids := make([]string, 0, len(s.latest))
	for id := range s.latest {
		ids = append(ids, id)
	}
	return ids
}
