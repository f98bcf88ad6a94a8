package vcs

import "strings"

// validateBranchName enforces the repository's naming conventions for a
// proposed branch. Pure predicate check, no side effects.
func validateBranchName(repo *Repository, name string, branchType BranchType) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return policyViolation("branch name is required")
	}
	if repo.branch(trimmed) != nil {
		return policyViolation("branch %q already exists", trimmed)
	}

	prefix := ""
	switch branchType {
	case BranchTypeFeature:
		prefix = repo.Strategy.FeaturePrefix
	case BranchTypeBugfix:
		prefix = repo.Strategy.BugfixPrefix
	case BranchTypeRelease:
		prefix = repo.Strategy.ReleasePrefix
	case BranchTypeExperiment:
		prefix = repo.Strategy.ExperimentPrefix
	case "":
		return nil
	default:
		return policyViolation("unknown branch type %q", branchType)
	}
	if prefix != "" && !strings.HasPrefix(trimmed, prefix) {
		return policyViolation("branch %q must start with %q for type %q", trimmed, prefix, branchType)
	}
	return nil
}
