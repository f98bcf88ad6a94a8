package vcs

import (
	"context"
	"strings"
	"time"
)

// CreateBranchInput describes a branch to create off a base branch.
type CreateBranchInput struct {
	Name        string
	Description string
	BaseBranch  string
	Creator     Signature
	Type        BranchType
}

// CreateBranch validates the proposed name against the repository's naming
// policy, requires the base branch to exist, and records the new branch in
// active status together with a branch-creation commit attributed to the
// creator. Experiment branches carry automation metadata on that commit.
func (e *Engine) CreateBranch(ctx context.Context, repoID string, input CreateBranchInput) (*Branch, error) {
	var created *Branch
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		name := strings.TrimSpace(input.Name)
		if err := validateBranchName(repo, name, input.Type); err != nil {
			return err
		}

		baseBranch := input.BaseBranch
		if baseBranch == "" {
			baseBranch = repo.DefaultBranch
		}
		base := repo.branch(baseBranch)
		if base == nil {
			return notFound("base branch %q not found in repository %q", baseBranch, repoID)
		}

		now := time.Now()
		branch := &Branch{
			Name:        name,
			Description: input.Description,
			CreatedBy:   input.Creator,
			CreatedAt:   now,
			BaseBranch:  base.Name,
			Status:      BranchActive,
		}
		repo.Branches = append(repo.Branches, branch)
		repo.Stats.ActiveBranches++

		creation := &Commit{
			Message:   "Create branch " + name + " from " + base.Name,
			CreatedAt: now,
			Author:    input.Creator,
			Branch:    name,
		}
		if tip := repo.tip(base.Name); tip != "" {
			creation.Parents = []string{tip}
		}
		if input.Type == BranchTypeExperiment {
			creation.Automation = &AutomationInfo{
				Rationale:      "agent experiment branch",
				ReviewRequired: true,
			}
		}
		repo.appendCommit(creation)

		created = branch.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteBranch removes a branch from the active list. The default branch and
// any protected branch cannot be deleted. Commit history is permanent: the
// branch's commits stay addressable by name afterwards.
func (e *Engine) DeleteBranch(ctx context.Context, repoID, branchName, deletedBy string) error {
	return e.mutate(ctx, repoID, func(repo *Repository) error {
		branch := repo.branch(branchName)
		if branch == nil {
			return notFound("branch %q not found in repository %q", branchName, repoID)
		}
		if repo.isProtected(branchName) || branch.Protected {
			return policyViolation("branch %q is protected and cannot be deleted", branchName)
		}

		wasActive := branch.Status == BranchActive
		branch.Status = BranchDeleted
		repo.removeBranch(branchName)
		if wasActive {
			repo.Stats.ActiveBranches--
			repo.Stats.MergedBranches++
		}
		return nil
	})
}

func (r *Repository) removeBranch(name string) {
	kept := r.Branches[:0]
	for _, branch := range r.Branches {
		if branch.Name != name {
			kept = append(kept, branch)
		}
	}
	r.Branches = kept
}
