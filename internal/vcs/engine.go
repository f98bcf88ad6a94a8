package vcs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"concord/api/internal/util"
)

const defaultBranchName = "main"

// ConflictAnalyzer produces an advisory suggestion for a detected conflict.
// Implementations may be substituted without changing any other contract.
type ConflictAnalyzer interface {
	Analyze(conflict MergeConflict) Suggestion
}

// Snapshots is an optional persistence layer under the engine. Save is
// invoked write-through inside the owning repository's critical section.
type Snapshots interface {
	Save(ctx context.Context, repo *Repository) error
	Load(ctx context.Context, id string) (*Repository, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Engine is the version control engine. All repository state lives in an
// explicit registry owned by the engine instance; two engines never share
// state. Mutations on one repository are serialized by a per-repository
// lock, so concurrent work on different repositories proceeds in parallel.
type Engine struct {
	mu        sync.RWMutex
	repos     map[string]*Repository
	locks     map[string]*sync.RWMutex
	analyzer  ConflictAnalyzer
	snapshots Snapshots
}

type Option func(*Engine)

// WithSnapshots layers a persistence backend under the engine.
func WithSnapshots(snapshots Snapshots) Option {
	return func(e *Engine) { e.snapshots = snapshots }
}

func NewEngine(analyzer ConflictAnalyzer, opts ...Option) *Engine {
	engine := &Engine{
		repos:    make(map[string]*Repository),
		locks:    make(map[string]*sync.RWMutex),
		analyzer: analyzer,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// RepositoryShell is the collaborative repository skeleton supplied by the
// repository provider.
type RepositoryShell struct {
	ID            string
	Name          string
	Collaborators []Collaborator
	Branches      []string
}

// InitializeVersionControl wraps a provider-supplied shell into a tracked
// repository with a branching strategy and merge policy attached. The default
// branch is created (and protected) with an initialization commit when the
// shell does not already carry it.
func (e *Engine) InitializeVersionControl(ctx context.Context, shell RepositoryShell, strategy BranchingStrategy, policy MergePolicy, initialVersion string) (*Repository, error) {
	id := strings.TrimSpace(shell.ID)
	if id == "" {
		id = util.NewID("repo")
	}

	applyStrategyDefaults(&strategy)

	now := time.Now()
	repo := &Repository{
		ID:                id,
		Name:              shell.Name,
		DefaultBranch:     defaultBranchName,
		ProtectedBranches: []string{defaultBranchName},
		CurrentVersion:    initialVersion,
		Strategy:          strategy,
		Policy:            policy,
		Collaborators:     append([]Collaborator(nil), shell.Collaborators...),
		CreatedAt:         now,
	}

	branchNames := shell.Branches
	if !containsString(branchNames, defaultBranchName) {
		branchNames = append([]string{defaultBranchName}, branchNames...)
	}
	for _, name := range branchNames {
		repo.Branches = append(repo.Branches, &Branch{
			Name:       name,
			CreatedBy:  Signature{ID: "system", Name: "system", Kind: AuthorSystem},
			CreatedAt:  now,
			BaseBranch: defaultBranchName,
			Protected:  repo.isProtected(name),
			Status:     BranchActive,
		})
	}
	repo.Stats.ActiveBranches = len(repo.Branches)

	repo.appendCommit(&Commit{
		Message:   "Initialize version control",
		CreatedAt: now,
		Author:    Signature{ID: "system", Name: "system", Kind: AuthorSystem},
		Branch:    defaultBranchName,
		Verified:  true,
	})

	e.mu.Lock()
	if _, exists := e.repos[repo.ID]; exists {
		e.mu.Unlock()
		return nil, invalidState("repository %q is already under version control", repo.ID)
	}
	e.repos[repo.ID] = repo
	lock := e.lockFor(repo.ID)
	e.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	if err := e.persist(ctx, repo); err != nil {
		return nil, err
	}
	return repo.Clone(), nil
}

// GetRepository returns a consistent snapshot of one repository.
func (e *Engine) GetRepository(id string) (*Repository, error) {
	var snapshot *Repository
	err := e.read(id, func(repo *Repository) error {
		snapshot = repo.Clone()
		return nil
	})
	return snapshot, err
}

// ListRepositories returns snapshots of every tracked repository, oldest first.
func (e *Engine) ListRepositories() []*Repository {
	e.mu.RLock()
	ids := make([]string, 0, len(e.repos))
	for id := range e.repos {
		ids = append(ids, id)
	}
	e.mu.RUnlock()
	sort.Strings(ids)

	items := make([]*Repository, 0, len(ids))
	for _, id := range ids {
		if snapshot, err := e.GetRepository(id); err == nil {
			items = append(items, snapshot)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items
}

// GetBranchCommits returns the branch's commits in creation order. Commit
// history is permanent, so commits of a deleted branch remain addressable
// by the branch name.
func (e *Engine) GetBranchCommits(repoID, branchName string) ([]*Commit, error) {
	var commits []*Commit
	err := e.read(repoID, func(repo *Repository) error {
		for _, commit := range repo.Commits {
			if commit.Branch == branchName {
				commits = append(commits, commit.Clone())
			}
		}
		return nil
	})
	return commits, err
}

// GetCommit returns one commit by hash.
func (e *Engine) GetCommit(repoID, hash string) (*Commit, error) {
	var found *Commit
	err := e.read(repoID, func(repo *Repository) error {
		commit := repo.commit(hash)
		if commit == nil {
			return notFound("commit %q not found in repository %q", hash, repoID)
		}
		found = commit.Clone()
		return nil
	})
	return found, err
}

// Restore loads every snapshot the persistence backend holds into the
// registry. Repositories already present in memory are left untouched.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	if e.snapshots == nil {
		return 0, nil
	}
	ids, err := e.snapshots.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	restored := 0
	for _, id := range ids {
		e.mu.RLock()
		_, exists := e.repos[id]
		e.mu.RUnlock()
		if exists {
			continue
		}
		repo, err := e.snapshots.Load(ctx, id)
		if err != nil {
			return restored, fmt.Errorf("load snapshot %s: %w", id, err)
		}
		e.mu.Lock()
		e.repos[repo.ID] = repo
		e.lockFor(repo.ID)
		e.mu.Unlock()
		restored++
	}
	return restored, nil
}

// lockFor returns the lock for a repository id, creating it on first use.
// Callers must hold e.mu.
func (e *Engine) lockFor(id string) *sync.RWMutex {
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.RWMutex{}
		e.locks[id] = lock
	}
	return lock
}

func (e *Engine) lookup(id string) (*Repository, *sync.RWMutex, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	repo, ok := e.repos[id]
	if !ok {
		return nil, nil, notFound("repository %q not found", id)
	}
	return repo, e.locks[id], nil
}

// mutate runs fn under the repository's write lock and persists the result
// inside the same critical section.
func (e *Engine) mutate(ctx context.Context, repoID string, fn func(*Repository) error) error {
	repo, lock, err := e.lookup(repoID)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()
	if err := fn(repo); err != nil {
		return err
	}
	return e.persist(ctx, repo)
}

// read runs fn under the repository's read lock.
func (e *Engine) read(repoID string, fn func(*Repository) error) error {
	repo, lock, err := e.lookup(repoID)
	if err != nil {
		return err
	}
	lock.RLock()
	defer lock.RUnlock()
	return fn(repo)
}

func (e *Engine) persist(ctx context.Context, repo *Repository) error {
	if e.snapshots == nil {
		return nil
	}
	if err := e.snapshots.Save(ctx, repo); err != nil {
		return fmt.Errorf("persist repository %s: %w", repo.ID, err)
	}
	return nil
}

func applyStrategyDefaults(strategy *BranchingStrategy) {
	defaults := DefaultBranchingStrategy()
	if strategy.FeaturePrefix == "" {
		strategy.FeaturePrefix = defaults.FeaturePrefix
	}
	if strategy.BugfixPrefix == "" {
		strategy.BugfixPrefix = defaults.BugfixPrefix
	}
	if strategy.ReleasePrefix == "" {
		strategy.ReleasePrefix = defaults.ReleasePrefix
	}
	if strategy.ExperimentPrefix == "" {
		strategy.ExperimentPrefix = defaults.ExperimentPrefix
	}
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
