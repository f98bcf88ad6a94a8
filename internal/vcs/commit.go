package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
)

// CommitInput describes a commit to be appended to a branch.
type CommitInput struct {
	Message     string
	Description string
	Author      Signature
	Changes     []FileChange
	Automation  *AutomationInfo
	Verified    bool
}

// CreateCommit appends an immutable commit to the named branch. The commit
// lands in the repository-wide history; reads filter it back out by branch
// name. The branch's last-commit timestamp and touched-path union are
// updated, and the automated-commit counter moves when the author is an
// agent.
func (e *Engine) CreateCommit(ctx context.Context, repoID, branchName string, input CommitInput) (*Commit, error) {
	var created *Commit
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		branch := repo.branch(branchName)
		if branch == nil {
			return notFound("branch %q not found in repository %q", branchName, repoID)
		}
		commit := repo.appendCommit(&Commit{
			Message:     strings.TrimSpace(input.Message),
			Description: input.Description,
			CreatedAt:   time.Now(),
			Author:      input.Author,
			Branch:      branchName,
			Changes:     append([]FileChange(nil), input.Changes...),
			Automation:  input.Automation,
			Verified:    input.Verified,
		})
		created = commit.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// appendCommit finalizes and records a commit: derives the content hash,
// sums line deltas, defaults parents to the branch tip, and maintains branch
// metadata and repository counters. Caller holds the repository lock.
func (r *Repository) appendCommit(commit *Commit) *Commit {
	for _, change := range commit.Changes {
		commit.LinesAdded += change.LinesAdded
		commit.LinesDeleted += change.LinesDeleted
	}
	if len(commit.Parents) == 0 {
		if tip := r.tip(commit.Branch); tip != "" {
			commit.Parents = []string{tip}
		}
	}
	commit.Hash = r.commitHash(commit)
	r.Commits = append(r.Commits, commit)

	if branch := r.branch(commit.Branch); branch != nil {
		branch.LastCommitAt = commit.CreatedAt
		paths := lo.Map(commit.Changes, func(change FileChange, _ int) string {
			return change.Path
		})
		branch.TouchedPaths = lo.Uniq(append(branch.TouchedPaths, paths...))
	}
	if commit.Author.Kind == AuthorAgent {
		r.Stats.AutomatedCommits++
	}
	return commit
}

// commitHash derives a repository-unique identifier from the commit content.
// The running history length salts the digest so two otherwise identical
// commits never collide.
func (r *Repository) commitHash(commit *Commit) string {
	digest := xxhash.New()
	_, _ = digest.WriteString(r.ID)
	_, _ = digest.WriteString(commit.Branch)
	_, _ = digest.WriteString(commit.Message)
	_, _ = digest.WriteString(commit.Author.ID)
	_, _ = digest.WriteString(commit.CreatedAt.Format(time.RFC3339Nano))
	for _, parent := range commit.Parents {
		_, _ = digest.WriteString(parent)
	}
	for _, change := range commit.Changes {
		_, _ = digest.WriteString(change.Path)
		_, _ = digest.WriteString(string(change.Kind))
		_, _ = digest.WriteString(change.NewContent)
	}
	_, _ = digest.WriteString(fmt.Sprintf("%d", len(r.Commits)))
	return fmt.Sprintf("%016x", digest.Sum64())
}
