package vcs

import "github.com/samber/lo"

// Clone returns a deep copy of the repository. Reads hand out clones so
// callers never observe a commit list mid-append.
func (r *Repository) Clone() *Repository {
	if r == nil {
		return nil
	}
	clone := *r
	clone.ProtectedBranches = append([]string(nil), r.ProtectedBranches...)
	clone.Collaborators = append([]Collaborator(nil), r.Collaborators...)
	clone.Branches = lo.Map(r.Branches, func(b *Branch, _ int) *Branch {
		return b.clone()
	})
	clone.Commits = lo.Map(r.Commits, func(c *Commit, _ int) *Commit {
		return c.Clone()
	})
	clone.Tags = lo.Map(r.Tags, func(t *Tag, _ int) *Tag {
		copied := *t
		return &copied
	})
	clone.MergeRequests = lo.Map(r.MergeRequests, func(mr *MergeRequest, _ int) *MergeRequest {
		return mr.clone()
	})
	return &clone
}

func (b *Branch) clone() *Branch {
	copied := *b
	copied.TouchedPaths = append([]string(nil), b.TouchedPaths...)
	return &copied
}

// Clone returns a deep copy of the commit.
func (c *Commit) Clone() *Commit {
	copied := *c
	copied.Changes = append([]FileChange(nil), c.Changes...)
	copied.Parents = append([]string(nil), c.Parents...)
	if c.Automation != nil {
		automation := *c.Automation
		copied.Automation = &automation
	}
	return &copied
}

func (mr *MergeRequest) clone() *MergeRequest {
	copied := *mr
	copied.Reviewers = append([]string(nil), mr.Reviewers...)
	copied.Approvals = append([]Approval(nil), mr.Approvals...)
	copied.ChangedFiles = append([]FileChange(nil), mr.ChangedFiles...)
	copied.Conflicts = lo.Map(mr.Conflicts, func(conflict *MergeConflict, _ int) *MergeConflict {
		return conflict.clone()
	})
	return &copied
}

func (c *MergeConflict) clone() *MergeConflict {
	copied := *c
	if c.Suggestion != nil {
		suggestion := *c.Suggestion
		copied.Suggestion = &suggestion
	}
	return &copied
}
