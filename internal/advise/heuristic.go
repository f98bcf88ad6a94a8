// Package advise holds conflict-analysis strategies. The default heuristic
// proposes a resolution from the shape of the conflict alone; substituting a
// semantic analyzer changes nothing in the engine's contracts.
package advise

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"concord/api/internal/vcs"
)

// Heuristic is the default conflict analyzer. It is deliberately
// conservative: it reads the conflict kind and the two sides' provenance,
// never the semantics of the content.
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Analyze(conflict vcs.MergeConflict) vcs.Suggestion {
	resolution, confidence, rationale := h.propose(conflict)

	if diff := sideDiff(conflict); diff != "" {
		rationale = rationale + "\n\n" + diff
	}

	return vcs.Suggestion{
		Resolution:     resolution,
		Confidence:     confidence,
		Rationale:      rationale,
		ReviewRequired: reviewRequired(conflict, confidence),
	}
}

func (h *Heuristic) propose(conflict vcs.MergeConflict) (string, float64, string) {
	oursAgent := conflict.Ours.Author.Kind == vcs.AuthorAgent
	theirsAgent := conflict.Theirs.Author.Kind == vcs.AuthorAgent

	switch conflict.Kind {
	case vcs.ConflictDeletion:
		return "keep-modified", 0.45,
			fmt.Sprintf("%s was deleted on one side while still edited on the other; keeping the edited version avoids discarding work", conflict.Path)
	case vcs.ConflictCreation:
		return "keep-latest", 0.6,
			fmt.Sprintf("%s was created independently on both sides; the more recent creation usually supersedes the other", conflict.Path)
	case vcs.ConflictRename:
		return "keep-rename", 0.55,
			fmt.Sprintf("%s was renamed or moved on one side; applying the rename and carrying the other side's edit over preserves both intents", conflict.Path)
	}

	if oursAgent != theirsAgent {
		return "prefer-human", 0.7,
			fmt.Sprintf("%s has a human edit competing with an agent edit; the human change takes precedence pending review", conflict.Path)
	}
	if oursAgent && theirsAgent {
		return "merge-both", 0.4,
			fmt.Sprintf("%s was edited by two agents; both changes should be combined under human supervision", conflict.Path)
	}
	return "merge-both", 0.5,
		fmt.Sprintf("%s carries two human edits; combine both changes manually", conflict.Path)
}

func reviewRequired(conflict vcs.MergeConflict, confidence float64) bool {
	if conflict.Severity == vcs.SeverityHigh || conflict.Severity == vcs.SeverityCritical {
		return true
	}
	return confidence < 0.5
}

// sideDiff renders a unified diff of the two competing contents when both
// sides carry any. Preview only; it feeds the rationale, nothing else.
func sideDiff(conflict vcs.MergeConflict) string {
	if conflict.Ours.Content == "" || conflict.Theirs.Content == "" {
		return ""
	}
	if conflict.Ours.Content == conflict.Theirs.Content {
		return ""
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(conflict.Theirs.Content),
		B:        difflib.SplitLines(conflict.Ours.Content),
		FromFile: "theirs",
		ToFile:   "ours",
		Context:  3,
	}
	rendered, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(rendered)
}
