package vcs

import (
	"sort"

	"github.com/samber/lo"

	"concord/api/internal/util"
)

// detectConflicts flags conflicting writes without attempting semantic
// reconciliation: the changes unique to each side are pooled, and any path
// touched by more than one change in the combined set is treated as a
// conflict. Intentionally conservative; real content-level diffing would be
// a drop-in replacement behind the same contract.
func detectConflicts(ahead, behind []attributedChange, analyzer ConflictAnalyzer) []*MergeConflict {
	combined := append(append([]attributedChange(nil), ahead...), behind...)
	byPath := lo.GroupBy(combined, func(item attributedChange) string {
		return item.change.Path
	})

	paths := lo.Keys(byPath)
	sort.Strings(paths)

	var conflicts []*MergeConflict
	for _, path := range paths {
		group := byPath[path]
		if len(group) < 2 {
			continue
		}
		conflict := buildConflict(path, group)
		if analyzer != nil {
			suggestion := analyzer.Analyze(*conflict)
			if conflict.Severity == SeverityHigh || conflict.Severity == SeverityCritical {
				suggestion.ReviewRequired = true
			}
			conflict.Suggestion = &suggestion
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}

// buildConflict pairs the two competing changes for a path: the latest
// source-side change against the latest target-side change. When one side
// touched the path alone, the two most recent changes in the group compete.
func buildConflict(path string, group []attributedChange) *MergeConflict {
	ours, oursFound := latestChange(group, true)
	theirs, theirsFound := latestChange(group, false)
	if !oursFound || !theirsFound {
		sorted := append([]attributedChange(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].commit.CreatedAt.Before(sorted[j].commit.CreatedAt)
		})
		ours = sorted[len(sorted)-1]
		theirs = sorted[len(sorted)-2]
	}

	return &MergeConflict{
		ID:       util.NewID("cfl"),
		Kind:     conflictKind(ours.change, theirs.change),
		Path:     path,
		Severity: conflictSeverity(ours.change, theirs.change),
		Ours:     conflictSide(ours),
		Theirs:   conflictSide(theirs),
		Status:   ConflictUnresolved,
	}
}

func latestChange(group []attributedChange, fromSource bool) (attributedChange, bool) {
	var latest attributedChange
	found := false
	for _, item := range group {
		if item.fromSource != fromSource {
			continue
		}
		if !found || item.commit.CreatedAt.After(latest.commit.CreatedAt) {
			latest = item
			found = true
		}
	}
	return latest, found
}

func conflictSide(item attributedChange) ConflictSide {
	side := ConflictSide{
		Author:    item.commit.Author,
		Timestamp: item.commit.CreatedAt,
		Content:   item.change.NewContent,
	}
	if item.commit.Automation != nil {
		side.Rationale = item.commit.Automation.Rationale
	}
	return side
}

func conflictKind(ours, theirs FileChange) ConflictKind {
	oursDeleted := ours.Kind == ChangeDeleted
	theirsDeleted := theirs.Kind == ChangeDeleted
	switch {
	case oursDeleted != theirsDeleted:
		return ConflictDeletion
	case ours.Kind == ChangeAdded && theirs.Kind == ChangeAdded:
		return ConflictCreation
	case ours.Kind == ChangeRenamed || ours.Kind == ChangeMoved ||
		theirs.Kind == ChangeRenamed || theirs.Kind == ChangeMoved:
		return ConflictRename
	default:
		return ConflictContent
	}
}

// conflictSeverity defaults to medium; a change deleted on one side while
// still edited on the other is graded high because resolving it discards
// work outright.
func conflictSeverity(ours, theirs FileChange) Severity {
	if (ours.Kind == ChangeDeleted) != (theirs.Kind == ChangeDeleted) {
		return SeverityHigh
	}
	return SeverityMedium
}
