// Package identity resolves collaborator identifiers to display identities
// for attribution on commits, branches, and merges.
package identity

import (
	"context"
	"errors"
	"sync"

	"concord/api/internal/vcs"
)

// ErrUnknownCollaborator is returned when an identifier has no directory entry.
var ErrUnknownCollaborator = errors.New("unknown collaborator")

// Directory looks up collaborators. The production deployment backs this
// with the org directory; the engine never talks to it directly.
type Directory interface {
	Resolve(ctx context.Context, userID string) (vcs.Collaborator, error)
}

// InMemory is a Directory backed by a process-local map.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]vcs.Collaborator
}

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]vcs.Collaborator)}
}

// Register adds or replaces a directory entry.
func (d *InMemory) Register(collaborator vcs.Collaborator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[collaborator.ID] = collaborator
}

func (d *InMemory) Resolve(_ context.Context, userID string) (vcs.Collaborator, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	entry, ok := d.entries[userID]
	if !ok {
		return vcs.Collaborator{}, ErrUnknownCollaborator
	}
	return entry, nil
}
