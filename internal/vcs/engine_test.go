package vcs

import (
	"context"
	"fmt"
	"testing"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(conflict MergeConflict) Suggestion {
	return Suggestion{
		Resolution: "merge-both",
		Confidence: 0.5,
		Rationale:  "stub analysis for " + conflict.Path,
	}
}

// fakeSnapshots records Save calls and serves Restore.
type fakeSnapshots struct {
	saved map[string]*Repository
	fail  error
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{saved: make(map[string]*Repository)}
}

func (f *fakeSnapshots) Save(_ context.Context, repo *Repository) error {
	if f.fail != nil {
		return f.fail
	}
	f.saved[repo.ID] = repo.Clone()
	return nil
}

func (f *fakeSnapshots) Load(_ context.Context, id string) (*Repository, error) {
	repo, ok := f.saved[id]
	if !ok {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	return repo.Clone(), nil
}

func (f *fakeSnapshots) List(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.saved))
	for id := range f.saved {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSnapshots) Delete(_ context.Context, id string) error {
	delete(f.saved, id)
	return nil
}

var (
	alice = Signature{ID: "alice", Name: "Alice", Kind: AuthorHuman}
	bob   = Signature{ID: "bob", Name: "Bob", Kind: AuthorHuman}
	agent = Signature{ID: "agent-1", Name: "Refactor Agent", Kind: AuthorAgent}
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return NewEngine(stubAnalyzer{}, opts...)
}

func seedRepository(t *testing.T, engine *Engine, id string, strategy BranchingStrategy, policy MergePolicy) *Repository {
	t.Helper()
	repo, err := engine.InitializeVersionControl(context.Background(), RepositoryShell{
		ID:   id,
		Name: "Test Repository",
	}, strategy, policy, "")
	if err != nil {
		t.Fatalf("initialize version control: %v", err)
	}
	return repo
}

func TestInitializeVersionControl(t *testing.T) {
	engine := newTestEngine(t)
	repo := seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})

	if repo.DefaultBranch != "main" {
		t.Fatalf("default branch = %q, want main", repo.DefaultBranch)
	}
	if len(repo.Branches) != 1 || repo.Branches[0].Name != "main" {
		t.Fatalf("branches = %+v, want only main", repo.Branches)
	}
	if !repo.Branches[0].Protected {
		t.Fatalf("default branch should be protected")
	}
	if repo.Stats.ActiveBranches != 1 {
		t.Fatalf("active branches = %d, want 1", repo.Stats.ActiveBranches)
	}
	if len(repo.Commits) != 1 || repo.Commits[0].Branch != "main" {
		t.Fatalf("expected one initialization commit on main, got %+v", repo.Commits)
	}
	if repo.Strategy.FeaturePrefix != "feature/" {
		t.Fatalf("feature prefix = %q, want default", repo.Strategy.FeaturePrefix)
	}

	if _, err := engine.InitializeVersionControl(context.Background(), RepositoryShell{ID: "repo-1", Name: "Again"}, BranchingStrategy{}, MergePolicy{}, ""); !IsInvalidState(err) {
		t.Fatalf("re-initializing should fail with invalid state, got %v", err)
	}
}

func TestInitializeWithExistingBranches(t *testing.T) {
	engine := newTestEngine(t)
	repo, err := engine.InitializeVersionControl(context.Background(), RepositoryShell{
		ID:       "repo-shell",
		Name:     "Shell",
		Branches: []string{"develop"},
	}, BranchingStrategy{}, MergePolicy{}, "1.0.0")
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(repo.Branches) != 2 {
		t.Fatalf("branches = %d, want main + develop", len(repo.Branches))
	}
	if repo.CurrentVersion != "1.0.0" {
		t.Fatalf("current version = %q, want 1.0.0", repo.CurrentVersion)
	}
}

func TestGetRepositoryNotFound(t *testing.T) {
	engine := newTestEngine(t)
	if _, err := engine.GetRepository("missing"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetRepositoryReturnsSnapshot(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})

	first, err := engine.GetRepository("repo-1")
	if err != nil {
		t.Fatalf("get repository: %v", err)
	}
	first.Name = "mutated"
	first.Branches[0].Name = "hijacked"

	second, err := engine.GetRepository("repo-1")
	if err != nil {
		t.Fatalf("get repository: %v", err)
	}
	if second.Name != "Test Repository" || second.Branches[0].Name != "main" {
		t.Fatalf("snapshot mutation leaked into engine state: %+v", second)
	}
}

func TestCreateCommitOrderAndCounters(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	const commitCount = 5
	var hashes []string
	for i := 0; i < commitCount; i++ {
		commit, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{
			Message: fmt.Sprintf("change %d", i),
			Author:  alice,
			Changes: []FileChange{
				{Path: fmt.Sprintf("file%d.go", i), Kind: ChangeAdded, LinesAdded: 10, LinesDeleted: 2},
			},
		})
		if err != nil {
			t.Fatalf("create commit %d: %v", i, err)
		}
		if commit.LinesAdded != 10 || commit.LinesDeleted != 2 {
			t.Fatalf("commit line counts = +%d -%d, want +10 -2", commit.LinesAdded, commit.LinesDeleted)
		}
		hashes = append(hashes, commit.Hash)
	}

	commits, err := engine.GetBranchCommits("repo-1", "main")
	if err != nil {
		t.Fatalf("get branch commits: %v", err)
	}
	// initialization commit plus the five appended ones, in creation order
	if len(commits) != commitCount+1 {
		t.Fatalf("commit count = %d, want %d", len(commits), commitCount+1)
	}
	for i, hash := range hashes {
		if commits[i+1].Hash != hash {
			t.Fatalf("commit %d out of order", i)
		}
	}

	seen := make(map[string]bool)
	for _, commit := range commits {
		if seen[commit.Hash] {
			t.Fatalf("duplicate commit hash %s", commit.Hash)
		}
		seen[commit.Hash] = true
	}

	repo, _ := engine.GetRepository("repo-1")
	if repo.Branches[0].LastCommitAt.IsZero() {
		t.Fatalf("branch last-commit timestamp not updated")
	}
	if len(repo.Branches[0].TouchedPaths) != commitCount {
		t.Fatalf("touched paths = %v, want %d entries", repo.Branches[0].TouchedPaths, commitCount)
	}
}

func TestCreateCommitAutomatedCounter(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	if _, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{Message: "human", Author: alice}); err != nil {
		t.Fatalf("create commit: %v", err)
	}
	if _, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{
		Message:    "agent",
		Author:     agent,
		Automation: &AutomationInfo{Confidence: 0.9, Rationale: "refactor"},
	}); err != nil {
		t.Fatalf("create commit: %v", err)
	}

	repo, _ := engine.GetRepository("repo-1")
	if repo.Stats.AutomatedCommits != 1 {
		t.Fatalf("automated commits = %d, want 1", repo.Stats.AutomatedCommits)
	}
}

func TestCreateCommitMissingBranch(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})

	_, err := engine.CreateCommit(context.Background(), "repo-1", "ghost", CommitInput{Message: "x", Author: alice})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateBranchNamingPolicy(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	_, err := engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:    "login",
		Creator: alice,
		Type:    BranchTypeFeature,
	})
	if !IsPolicyViolation(err) {
		t.Fatalf("missing feature prefix should violate policy, got %v", err)
	}

	branch, err := engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:    "feature/login",
		Creator: alice,
		Type:    BranchTypeFeature,
	})
	if err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if branch.Status != BranchActive || branch.BaseBranch != "main" {
		t.Fatalf("branch = %+v, want active off main", branch)
	}

	_, err = engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:    "feature/login",
		Creator: bob,
		Type:    BranchTypeFeature,
	})
	if !IsPolicyViolation(err) {
		t.Fatalf("duplicate branch should violate policy, got %v", err)
	}

	_, err = engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:       "feature/off-base",
		BaseBranch: "ghost",
		Creator:    alice,
		Type:       BranchTypeFeature,
	})
	if !IsNotFound(err) {
		t.Fatalf("missing base branch should be not found, got %v", err)
	}

	_, err = engine.CreateBranch(ctx, "repo-1", CreateBranchInput{Name: "   ", Creator: alice})
	if !IsPolicyViolation(err) {
		t.Fatalf("blank name should violate policy, got %v", err)
	}
}

func TestCreateBranchEmitsCreationCommit(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	if _, err := engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:    "ai-experiment/retune",
		Creator: agent,
		Type:    BranchTypeExperiment,
	}); err != nil {
		t.Fatalf("create branch: %v", err)
	}

	commits, err := engine.GetBranchCommits("repo-1", "ai-experiment/retune")
	if err != nil {
		t.Fatalf("get branch commits: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("creation commits = %d, want 1", len(commits))
	}
	if len(commits[0].Changes) != 0 {
		t.Fatalf("creation commit should carry no file changes")
	}
	if commits[0].Automation == nil || !commits[0].Automation.ReviewRequired {
		t.Fatalf("experiment creation commit should carry automation metadata")
	}

	repo, _ := engine.GetRepository("repo-1")
	if repo.Stats.ActiveBranches != 2 {
		t.Fatalf("active branches = %d, want 2", repo.Stats.ActiveBranches)
	}
}

func TestDeleteBranchGuards(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	if err := engine.DeleteBranch(ctx, "repo-1", "main", "alice"); !IsPolicyViolation(err) {
		t.Fatalf("deleting the default branch should violate policy, got %v", err)
	}
	if err := engine.DeleteBranch(ctx, "repo-1", "ghost", "alice"); !IsNotFound(err) {
		t.Fatalf("deleting a missing branch should be not found, got %v", err)
	}

	if _, err := engine.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:    "feature/short-lived",
		Creator: alice,
		Type:    BranchTypeFeature,
	}); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, err := engine.CreateCommit(ctx, "repo-1", "feature/short-lived", CommitInput{Message: "work", Author: alice}); err != nil {
		t.Fatalf("create commit: %v", err)
	}

	if err := engine.DeleteBranch(ctx, "repo-1", "feature/short-lived", "alice"); err != nil {
		t.Fatalf("delete branch: %v", err)
	}

	repo, _ := engine.GetRepository("repo-1")
	if repo.Stats.ActiveBranches != 1 || repo.Stats.MergedBranches != 1 {
		t.Fatalf("stats = %+v, want 1 active / 1 merged", repo.Stats)
	}

	// history is permanent and still addressable by branch name
	commits, err := engine.GetBranchCommits("repo-1", "feature/short-lived")
	if err != nil {
		t.Fatalf("get branch commits after delete: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("commit count after delete = %d, want 2", len(commits))
	}
}

func TestSnapshotWriteThroughAndRestore(t *testing.T) {
	snapshots := newFakeSnapshots()
	engine := newTestEngine(t, WithSnapshots(snapshots))
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	if _, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{Message: "persisted", Author: alice}); err != nil {
		t.Fatalf("create commit: %v", err)
	}
	saved, ok := snapshots.saved["repo-1"]
	if !ok {
		t.Fatalf("write-through did not persist the repository")
	}
	if len(saved.Commits) != 2 {
		t.Fatalf("persisted commits = %d, want 2", len(saved.Commits))
	}

	fresh := newTestEngine(t, WithSnapshots(snapshots))
	restored, err := fresh.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}
	repo, err := fresh.GetRepository("repo-1")
	if err != nil {
		t.Fatalf("get restored repository: %v", err)
	}
	if len(repo.Commits) != 2 {
		t.Fatalf("restored commits = %d, want 2", len(repo.Commits))
	}
}
