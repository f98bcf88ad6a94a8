package vcs

import (
	"context"
	"strings"
	"time"

	"github.com/lucsky/cuid"
)

// CreateMergeRequestInput describes a proposal to integrate a source branch
// into a target branch.
type CreateMergeRequestInput struct {
	Title        string
	Description  string
	SourceBranch string
	TargetBranch string
	CreatedBy    Signature
	Reviewers    []string
}

// CreateMergeRequest runs a fresh branch comparison and snapshots its
// conflicts and changed files onto a new request in open status.
func (e *Engine) CreateMergeRequest(ctx context.Context, repoID string, input CreateMergeRequestInput) (*MergeRequest, error) {
	var created *MergeRequest
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		comparison, err := compareBranches(repo, input.SourceBranch, input.TargetBranch, e.analyzer)
		if err != nil {
			return err
		}

		now := time.Now()
		request := &MergeRequest{
			ID:           cuid.New(),
			Title:        strings.TrimSpace(input.Title),
			Description:  input.Description,
			SourceBranch: input.SourceBranch,
			TargetBranch: input.TargetBranch,
			CreatedBy:    input.CreatedBy,
			CreatedAt:    now,
			UpdatedAt:    now,
			Status:       MergeRequestOpen,
			Reviewers:    append([]string(nil), input.Reviewers...),
			ChangedFiles: comparison.ChangedFiles,
			HasConflicts: len(comparison.Conflicts) > 0,
			Conflicts:    comparison.Conflicts,
		}
		for _, change := range request.ChangedFiles {
			request.LinesAdded += change.LinesAdded
			request.LinesDeleted += change.LinesDeleted
		}
		repo.MergeRequests = append(repo.MergeRequests, request)
		created = request.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveMergeRequest records a reviewer approval. The request advances to
// approved once approvals meet the merge policy's required count and no
// conflict remains unresolved.
func (e *Engine) ApproveMergeRequest(ctx context.Context, repoID, requestID, approvedBy string) (*MergeRequest, error) {
	var approved *MergeRequest
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		request := repo.mergeRequest(requestID)
		if request == nil {
			return notFound("merge request %q not found in repository %q", requestID, repoID)
		}
		if request.Status != MergeRequestOpen && request.Status != MergeRequestApproved {
			return invalidState("merge request %q is %s and cannot be approved", requestID, request.Status)
		}
		for _, approval := range request.Approvals {
			if approval.ApprovedBy == approvedBy {
				return invalidState("merge request %q is already approved by %q", requestID, approvedBy)
			}
		}

		request.Approvals = append(request.Approvals, Approval{
			ApprovedBy: approvedBy,
			ApprovedAt: time.Now(),
		})
		request.UpdatedAt = time.Now()

		required := repo.Policy.RequiredApprovals
		if required <= 0 {
			required = 1
		}
		if request.Status == MergeRequestOpen &&
			len(request.Approvals) >= required &&
			request.unresolvedCount() == 0 {
			request.Status = MergeRequestApproved
		}
		approved = request.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// ResolveMergeConflict marks one conflict resolved and records the chosen
// resolution. Resolving the last outstanding conflict clears the request's
// conflict flag and, when the merge policy allows auto-merge, advances the
// request to approved without an explicit approval action.
func (e *Engine) ResolveMergeConflict(ctx context.Context, repoID, requestID, conflictID, resolution, resolvedBy string) (*MergeRequest, error) {
	var updated *MergeRequest
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		request := repo.mergeRequest(requestID)
		if request == nil {
			return notFound("merge request %q not found in repository %q", requestID, repoID)
		}
		if request.Status == MergeRequestMerged || request.Status == MergeRequestClosed {
			return invalidState("merge request %q is %s; its conflicts are frozen", requestID, request.Status)
		}

		var conflict *MergeConflict
		for _, candidate := range request.Conflicts {
			if candidate.ID == conflictID {
				conflict = candidate
				break
			}
		}
		if conflict == nil {
			return notFound("conflict %q not found on merge request %q", conflictID, requestID)
		}
		if conflict.Status != ConflictUnresolved {
			return invalidState("conflict %q is already %s", conflictID, conflict.Status)
		}

		now := time.Now()
		conflict.Status = ConflictResolved
		conflict.Resolution = resolution
		conflict.ResolvedBy = resolvedBy
		conflict.ResolvedAt = now
		request.UpdatedAt = now

		if request.unresolvedCount() == 0 {
			request.HasConflicts = false
			if request.Status == MergeRequestOpen && repo.Policy.AllowAutoMerge {
				request.Status = MergeRequestApproved
			}
		}
		updated = request.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CloseMergeRequest abandons an open request. Closed requests never reopen.
func (e *Engine) CloseMergeRequest(ctx context.Context, repoID, requestID, closedBy string) (*MergeRequest, error) {
	var closed *MergeRequest
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		request := repo.mergeRequest(requestID)
		if request == nil {
			return notFound("merge request %q not found in repository %q", requestID, repoID)
		}
		if request.Status != MergeRequestOpen && request.Status != MergeRequestApproved {
			return invalidState("merge request %q is %s and cannot be closed", requestID, request.Status)
		}
		request.Status = MergeRequestClosed
		request.UpdatedAt = time.Now()
		closed = request.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// MergeBranches executes an approved request: a merge commit referencing both
// branch tips lands on the target branch, the request transitions to merged,
// and repository statistics are rolled forward. The strategy is recorded but
// only the merge strategy shapes the commit today; squash and rebase share
// the two-parent form.
func (e *Engine) MergeBranches(ctx context.Context, repoID, requestID string, mergedBy Signature, strategy MergeStrategy) (*MergeRequest, error) {
	var merged *MergeRequest
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		request := repo.mergeRequest(requestID)
		if request == nil {
			return notFound("merge request %q not found in repository %q", requestID, repoID)
		}
		if request.Status != MergeRequestApproved {
			return invalidState("merge request %q is %s; only approved requests can merge", requestID, request.Status)
		}
		if outstanding := request.unresolvedCount(); outstanding > 0 {
			return unresolvedConflicts("merge request %q has %d unresolved conflicts", requestID, outstanding)
		}

		source := repo.branch(request.SourceBranch)
		target := repo.branch(request.TargetBranch)
		if source == nil {
			return notFound("source branch %q not found in repository %q", request.SourceBranch, repoID)
		}
		if target == nil {
			return notFound("target branch %q not found in repository %q", request.TargetBranch, repoID)
		}

		if strategy == "" {
			strategy = StrategyMerge
		}
		mergeCommit := executeMerge(repo, request, mergedBy, strategy)

		now := mergeCommit.CreatedAt
		request.Status = MergeRequestMerged
		request.MergedBy = mergedBy.Name
		request.MergedAt = now
		request.MergeCommit = mergeCommit.Hash
		request.Strategy = strategy
		request.UpdatedAt = now

		source.Status = BranchMerged
		repo.Stats.ActiveBranches--
		repo.Stats.MergedBranches++
		repo.rollMergeStats(request, now)

		if repo.Strategy.AutoDeleteOnMerge && !repo.isProtected(source.Name) {
			source.Status = BranchDeleted
			repo.removeBranch(source.Name)
		}

		merged = request.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// executeMerge synthesizes the merge commit on the target branch with both
// branch tips as parents and zero intrinsic file changes; file-level
// reconciliation is assumed captured by the prior conflict resolutions.
func executeMerge(repo *Repository, request *MergeRequest, mergedBy Signature, strategy MergeStrategy) *Commit {
	parents := make([]string, 0, 2)
	if tip := repo.tip(request.TargetBranch); tip != "" {
		parents = append(parents, tip)
	}
	if tip := repo.tip(request.SourceBranch); tip != "" {
		parents = append(parents, tip)
	}

	return repo.appendCommit(&Commit{
		Message:   "Merge " + request.SourceBranch + " into " + request.TargetBranch,
		CreatedAt: time.Now(),
		Author:    mergedBy,
		Branch:    request.TargetBranch,
		Parents:   parents,
		IsMerge:   true,
		Verified:  true,
	})
}

// rollMergeStats advances the running counters: totalMerges grows by exactly
// one, conflictRate and averageMergeHours fold the finished request in as a
// weighted average.
func (r *Repository) rollMergeStats(request *MergeRequest, mergedAt time.Time) {
	r.Stats.TotalMerges++
	n := float64(r.Stats.TotalMerges)

	conflicted := 0.0
	if len(request.Conflicts) > 0 {
		conflicted = 1.0
	}
	r.Stats.ConflictRate = (r.Stats.ConflictRate*(n-1) + conflicted) / n

	hours := mergedAt.Sub(request.CreatedAt).Hours()
	r.Stats.AverageMergeHours = (r.Stats.AverageMergeHours*(n-1) + hours) / n
}
