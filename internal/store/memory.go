// Package store provides snapshot persistence backends for the version
// control engine. Each backend stores one repository aggregate per entry;
// the engine calls Save inside the repository's critical section, so
// backends never see a half-applied mutation.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"concord/api/internal/vcs"
)

// Memory keeps snapshots in process memory. Default backend for tests and
// single-node development.
type Memory struct {
	mu    sync.RWMutex
	repos map[string]*vcs.Repository
}

func NewMemory() *Memory {
	return &Memory{repos: make(map[string]*vcs.Repository)}
}

func (m *Memory) Save(_ context.Context, repo *vcs.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[repo.ID] = repo.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*vcs.Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	return repo.Clone(), nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.repos))
	for id := range m.repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, id)
	return nil
}
