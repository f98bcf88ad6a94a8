package vcs

import (
	"context"
	"testing"
)

func TestCreateTagGuards(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	if _, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "",
		CommitHash: "whatever",
		CreatedBy:  alice,
		Kind:       TagMilestone,
	}); !IsPolicyViolation(err) {
		t.Fatalf("empty tag name should violate policy, got %v", err)
	}

	if _, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "v0.1.0",
		CommitHash: "does-not-exist",
		CreatedBy:  alice,
		Kind:       TagRelease,
	}); !IsNotFound(err) {
		t.Fatalf("unknown commit should be not found, got %v", err)
	}
}

func TestCreateReleaseTagUpdatesVersion(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	commit, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{Message: "ship it", Author: alice})
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}

	tag, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:         "v1.2.0",
		CommitHash:   commit.Hash,
		CreatedBy:    alice,
		Kind:         TagRelease,
		Version:      "1.2.0",
		ReleaseNotes: "login flow",
	})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if tag.ID == "" || tag.CommitHash != commit.Hash {
		t.Fatalf("tag = %+v, want bound to %s", tag, commit.Hash)
	}

	repo, _ := engine.GetRepository("repo-1")
	if repo.CurrentVersion != "1.2.0" {
		t.Fatalf("current version = %q, want 1.2.0", repo.CurrentVersion)
	}

	if _, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "v1.2.0",
		CommitHash: commit.Hash,
		CreatedBy:  bob,
		Kind:       TagRelease,
	}); !IsPolicyViolation(err) {
		t.Fatalf("duplicate tag name should violate policy, got %v", err)
	}
}

func TestCheckpointTagInheritsQualityScore(t *testing.T) {
	engine := newTestEngine(t)
	seedRepository(t, engine, "repo-1", BranchingStrategy{}, MergePolicy{})
	ctx := context.Background()

	commit, err := engine.CreateCommit(ctx, "repo-1", "main", CommitInput{
		Message:    "tune model params",
		Author:     agent,
		Automation: &AutomationInfo{Confidence: 0.87, Rationale: "sweep result"},
	})
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}

	tag, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "checkpoint-42",
		CommitHash: commit.Hash,
		CreatedBy:  agent,
		Kind:       TagCheckpoint,
	})
	if err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if tag.QualityScore != 0.87 {
		t.Fatalf("quality score = %v, want the commit's automation confidence", tag.QualityScore)
	}

	milestone, err := engine.CreateTag(ctx, "repo-1", CreateTagInput{
		Name:       "milestone-1",
		CommitHash: commit.Hash,
		CreatedBy:  alice,
		Kind:       TagMilestone,
	})
	if err != nil {
		t.Fatalf("create milestone tag: %v", err)
	}
	if milestone.QualityScore != 0 {
		t.Fatalf("milestone tags must not inherit quality scores, got %v", milestone.QualityScore)
	}
}
