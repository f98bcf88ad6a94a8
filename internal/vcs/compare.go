package vcs

import "github.com/samber/lo"

// CompareBranches computes how far source has diverged from target, the
// aggregated file changes unique to source, any file-level conflicts between
// the two sides, and an advisory risk assessment.
//
// Ahead/behind is a set difference over commit identifiers per branch, not a
// topological ancestor walk. The approximation is valid for linear-ish
// histories; a true DAG computation would change merge semantics and is
// deliberately out of scope.
func (e *Engine) CompareBranches(repoID, source, target string) (*BranchComparison, error) {
	var comparison *BranchComparison
	err := e.read(repoID, func(repo *Repository) error {
		result, err := compareBranches(repo, source, target, e.analyzer)
		if err != nil {
			return err
		}
		comparison = result
		return nil
	})
	return comparison, err
}

// attributedChange pairs a file change with its owning commit so conflict
// sides can carry author identity and timestamps.
type attributedChange struct {
	change     FileChange
	commit     *Commit
	fromSource bool
}

func compareBranches(repo *Repository, source, target string, analyzer ConflictAnalyzer) (*BranchComparison, error) {
	if repo.branch(source) == nil {
		return nil, notFound("branch %q not found in repository %q", source, repo.ID)
	}
	if repo.branch(target) == nil {
		return nil, notFound("branch %q not found in repository %q", target, repo.ID)
	}

	sourceCommits := commitsOn(repo, source)
	targetCommits := commitsOn(repo, target)
	sourceSet := hashSet(sourceCommits)
	targetSet := hashSet(targetCommits)

	aheadCommits := lo.Filter(sourceCommits, func(commit *Commit, _ int) bool {
		_, shared := targetSet[commit.Hash]
		return !shared
	})
	behindCommits := lo.Filter(targetCommits, func(commit *Commit, _ int) bool {
		_, shared := sourceSet[commit.Hash]
		return !shared
	})

	aheadChanges := attributeChanges(aheadCommits, true)
	behindChanges := attributeChanges(behindCommits, false)

	changedFiles := lo.Map(aheadChanges, func(item attributedChange, _ int) FileChange {
		return item.change
	})
	conflicts := detectConflicts(aheadChanges, behindChanges, analyzer)

	comparison := &BranchComparison{
		Source:       source,
		Target:       target,
		Ahead:        len(aheadCommits),
		Behind:       len(behindCommits),
		ChangedFiles: changedFiles,
		Conflicts:    conflicts,
	}
	comparison.Complexity = classifyComplexity(len(conflicts), len(changedFiles))
	comparison.Recommendation = recommend(comparison.Complexity, len(conflicts))
	return comparison, nil
}

// classifyComplexity is an order-sensitive threshold ladder: brackets are
// evaluated top-down so a comparison matching an earlier bracket never falls
// into a later one.
func classifyComplexity(conflictCount, changedFileCount int) MergeComplexity {
	switch {
	case conflictCount == 0 && changedFileCount <= 5:
		return ComplexitySimple
	case conflictCount <= 2 && changedFileCount <= 20:
		return ComplexityModerate
	case conflictCount <= 5 && changedFileCount <= 50:
		return ComplexityComplex
	default:
		return ComplexityHighRisk
	}
}

// recommend is purely informational; it never blocks or permits a merge.
func recommend(complexity MergeComplexity, conflictCount int) Recommendation {
	switch {
	case complexity == ComplexitySimple && conflictCount == 0:
		return RecommendApprove
	case complexity == ComplexityHighRisk:
		return RecommendReject
	default:
		return RecommendReviewRequired
	}
}

func commitsOn(repo *Repository, branchName string) []*Commit {
	return lo.Filter(repo.Commits, func(commit *Commit, _ int) bool {
		return commit.Branch == branchName
	})
}

func hashSet(commits []*Commit) map[string]struct{} {
	set := make(map[string]struct{}, len(commits))
	for _, commit := range commits {
		set[commit.Hash] = struct{}{}
	}
	return set
}

func attributeChanges(commits []*Commit, fromSource bool) []attributedChange {
	return lo.FlatMap(commits, func(commit *Commit, _ int) []attributedChange {
		return lo.Map(commit.Changes, func(change FileChange, _ int) attributedChange {
			return attributedChange{change: change, commit: commit, fromSource: fromSource}
		})
	})
}
