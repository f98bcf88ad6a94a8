package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"concord/api/internal/advise"
	"concord/api/internal/identity"
	"concord/api/internal/store"
	"concord/api/internal/vcs"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	engine := vcs.NewEngine(advise.NewHeuristic(), vcs.WithSnapshots(store.NewMemory()))
	return New(engine, identity.NewInMemory(), nil)
}

func initRepository(t *testing.T, service *Service, policy vcs.MergePolicy) *vcs.Repository {
	t.Helper()
	repo, err := service.InitializeRepository(context.Background(), InitializeRepositoryInput{
		ID:   "repo-1",
		Name: "Docs Platform",
		Collaborators: []vcs.Collaborator{
			{ID: "alice", DisplayName: "Alice Chen", Kind: vcs.AuthorHuman},
			{ID: "agent-7", DisplayName: "Refactor Agent", Kind: vcs.AuthorAgent},
		},
		Policy: policy,
	})
	if err != nil {
		t.Fatalf("initialize repository: %v", err)
	}
	return repo
}

func TestInitializeRepositoryValidation(t *testing.T) {
	service := newTestService(t)

	_, err := service.InitializeRepository(context.Background(), InitializeRepositoryInput{ID: "x"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Status != http.StatusUnprocessableEntity {
		t.Fatalf("missing name should map to 422, got %v", err)
	}
}

func TestServiceResolvesCollaboratorIdentity(t *testing.T) {
	service := newTestService(t)
	initRepository(t, service, vcs.MergePolicy{})
	ctx := context.Background()

	commit, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{
		Branch:   "main",
		Message:  "update docs",
		AuthorID: "alice",
	})
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}
	if commit.Author.Name != "Alice Chen" {
		t.Fatalf("author = %+v, want directory-resolved name", commit.Author)
	}

	// agents resolve with their registered kind even when the caller omits it
	agentCommit, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{
		Branch:   "main",
		Message:  "automated cleanup",
		AuthorID: "agent-7",
	})
	if err != nil {
		t.Fatalf("create agent commit: %v", err)
	}
	if agentCommit.Author.Kind != vcs.AuthorAgent {
		t.Fatalf("author kind = %s, want agent from directory", agentCommit.Author.Kind)
	}

	// unknown identifiers fall back to the raw id
	strayCommit, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{
		Branch:   "main",
		Message:  "drive-by fix",
		AuthorID: "stranger",
	})
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}
	if strayCommit.Author.Name != "stranger" || strayCommit.Author.Kind != vcs.AuthorHuman {
		t.Fatalf("author = %+v, want raw-id fallback", strayCommit.Author)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	service := newTestService(t)
	initRepository(t, service, vcs.MergePolicy{})
	ctx := context.Background()

	cases := []struct {
		name       string
		run        func() error
		wantStatus int
		wantCode   string
	}{
		{
			"missing repository",
			func() error { _, err := service.GetRepository("ghost"); return err },
			http.StatusNotFound, "NOT_FOUND",
		},
		{
			"naming policy",
			func() error {
				_, err := service.CreateBranch(ctx, "repo-1", CreateBranchInput{
					Name: "login", CreatedBy: "alice", Type: vcs.BranchTypeFeature,
				})
				return err
			},
			http.StatusUnprocessableEntity, "POLICY_VIOLATION",
		},
		{
			"deleting protected branch",
			func() error { return service.DeleteBranch(ctx, "repo-1", "main", "alice") },
			http.StatusUnprocessableEntity, "POLICY_VIOLATION",
		},
		{
			"empty commit message",
			func() error {
				_, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{Branch: "main", AuthorID: "alice"})
				return err
			},
			http.StatusUnprocessableEntity, "VALIDATION_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			var domain *DomainError
			if !errors.As(err, &domain) {
				t.Fatalf("expected a domain error, got %v", err)
			}
			if domain.Status != tc.wantStatus || domain.Code != tc.wantCode {
				t.Fatalf("error = %d/%s, want %d/%s", domain.Status, domain.Code, tc.wantStatus, tc.wantCode)
			}
		})
	}
}

func TestServiceMergeLifecycle(t *testing.T) {
	service := newTestService(t)
	initRepository(t, service, vcs.MergePolicy{})
	ctx := context.Background()

	if _, err := service.CreateBranch(ctx, "repo-1", CreateBranchInput{
		Name:      "feature/search",
		CreatedBy: "alice",
		Type:      vcs.BranchTypeFeature,
	}); err != nil {
		t.Fatalf("create branch: %v", err)
	}
	if _, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{
		Branch:   "feature/search",
		Message:  "add search endpoint",
		AuthorID: "alice",
		Changes:  []vcs.FileChange{{Path: "search.go", Kind: vcs.ChangeAdded, LinesAdded: 80}},
	}); err != nil {
		t.Fatalf("create commit: %v", err)
	}

	request, err := service.CreateMergeRequest(ctx, "repo-1", CreateMergeRequestInput{
		Title:        "Search endpoint",
		SourceBranch: "feature/search",
		TargetBranch: "main",
		CreatedBy:    "alice",
	})
	if err != nil {
		t.Fatalf("create merge request: %v", err)
	}
	if request.HasConflicts {
		t.Fatalf("clean branch should not conflict: %+v", request.Conflicts)
	}

	// merging before approval maps to 409
	_, err = service.Merge(ctx, "repo-1", request.ID, MergeInput{MergedBy: "alice"})
	var domain *DomainError
	if !errors.As(err, &domain) || domain.Status != http.StatusConflict {
		t.Fatalf("premature merge should map to 409, got %v", err)
	}

	if _, err := service.ApproveMergeRequest(ctx, "repo-1", request.ID, "bob"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	merged, err := service.Merge(ctx, "repo-1", request.ID, MergeInput{MergedBy: "alice"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Status != vcs.MergeRequestMerged {
		t.Fatalf("status = %s, want merged", merged.Status)
	}
	if merged.MergedBy != "Alice Chen" {
		t.Fatalf("mergedBy = %q, want directory-resolved name", merged.MergedBy)
	}

	repo, err := service.GetRepository("repo-1")
	if err != nil {
		t.Fatalf("get repository: %v", err)
	}
	if repo.Stats.TotalMerges != 1 {
		t.Fatalf("total merges = %d, want 1", repo.Stats.TotalMerges)
	}
}

func TestServiceTagCreation(t *testing.T) {
	service := newTestService(t)
	initRepository(t, service, vcs.MergePolicy{})
	ctx := context.Background()

	commit, err := service.CreateCommit(ctx, "repo-1", CreateCommitInput{
		Branch:   "main",
		Message:  "release candidate",
		AuthorID: "alice",
	})
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}

	tag, err := service.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "v1.0.0",
		CommitHash: commit.Hash,
		CreatedBy:  "alice",
		Kind:       vcs.TagRelease,
		Version:    "1.0.0",
	})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if tag.CreatedBy.Name != "Alice Chen" {
		t.Fatalf("tag author = %+v, want resolved identity", tag.CreatedBy)
	}

	repo, _ := service.GetRepository("repo-1")
	if repo.CurrentVersion != "1.0.0" {
		t.Fatalf("current version = %q, want 1.0.0", repo.CurrentVersion)
	}
}
