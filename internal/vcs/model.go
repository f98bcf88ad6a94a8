package vcs

import "time"

// AuthorKind distinguishes who produced a commit or change.
type AuthorKind string

const (
	AuthorHuman  AuthorKind = "human"
	AuthorAgent  AuthorKind = "automated-agent"
	AuthorSystem AuthorKind = "system"
)

// BranchStatus is the lifecycle state of a branch.
type BranchStatus string

const (
	BranchActive  BranchStatus = "active"
	BranchMerged  BranchStatus = "merged"
	BranchDeleted BranchStatus = "deleted"
)

// BranchType selects which naming prefix a new branch must carry.
type BranchType string

const (
	BranchTypeFeature    BranchType = "feature"
	BranchTypeBugfix     BranchType = "bugfix"
	BranchTypeRelease    BranchType = "release"
	BranchTypeExperiment BranchType = "ai-experiment"
)

// ChangeKind is the kind of delta a FileChange records.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRenamed  ChangeKind = "renamed"
	ChangeMoved    ChangeKind = "moved"
)

// MergeRequestStatus is the lifecycle state of a merge request.
// Valid transitions: open -> approved -> merged, or open -> closed.
type MergeRequestStatus string

const (
	MergeRequestOpen     MergeRequestStatus = "open"
	MergeRequestApproved MergeRequestStatus = "approved"
	MergeRequestMerged   MergeRequestStatus = "merged"
	MergeRequestClosed   MergeRequestStatus = "closed"
)

// ConflictKind classifies a detected conflict.
type ConflictKind string

const (
	ConflictContent  ConflictKind = "content"
	ConflictDeletion ConflictKind = "deletion"
	ConflictCreation ConflictKind = "creation"
	ConflictRename   ConflictKind = "rename"
	ConflictLogic    ConflictKind = "logic"
)

// Severity grades a conflict.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ResolutionStatus is the state of a single conflict.
type ResolutionStatus string

const (
	ConflictUnresolved ResolutionStatus = "unresolved"
	ConflictResolved   ResolutionStatus = "resolved"
	ConflictIgnored    ResolutionStatus = "ignored"
)

// TagKind classifies a tag.
type TagKind string

const (
	TagRelease    TagKind = "release"
	TagMilestone  TagKind = "milestone"
	TagBackup     TagKind = "backup"
	TagCheckpoint TagKind = "checkpoint"
)

// MergeStrategy names how a merge request is executed. Only StrategyMerge
// produces a distinct two-parent commit shape; squash and rebase are accepted
// and recorded but currently share it.
type MergeStrategy string

const (
	StrategyMerge  MergeStrategy = "merge"
	StrategySquash MergeStrategy = "squash"
	StrategyRebase MergeStrategy = "rebase"
)

// MergeComplexity is the comparator's deterministic classification.
type MergeComplexity string

const (
	ComplexitySimple   MergeComplexity = "simple"
	ComplexityModerate MergeComplexity = "moderate"
	ComplexityComplex  MergeComplexity = "complex"
	ComplexityHighRisk MergeComplexity = "high-risk"
)

// Recommendation is the comparator's advisory verdict. It never blocks or
// permits a merge by itself.
type Recommendation string

const (
	RecommendApprove        Recommendation = "approve"
	RecommendReviewRequired Recommendation = "review-required"
	RecommendReject         Recommendation = "reject"
)

// Signature identifies the actor behind a commit, branch, or merge.
type Signature struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind AuthorKind `json:"kind"`
}

// AutomationInfo carries metadata attached to agent-authored commits.
type AutomationInfo struct {
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale,omitempty"`
	ReviewRequired bool    `json:"reviewRequired"`
}

// FileChange is one file's delta within a commit.
type FileChange struct {
	Path             string     `json:"path"`
	Kind             ChangeKind `json:"kind"`
	LinesAdded       int        `json:"linesAdded"`
	LinesDeleted     int        `json:"linesDeleted"`
	OldContent       string     `json:"oldContent,omitempty"`
	NewContent       string     `json:"newContent,omitempty"`
	PreviousPath     string     `json:"previousPath,omitempty"`
	Automated        bool       `json:"automated"`
	HumanReviewed    bool       `json:"humanReviewed"`
	ConflictResolved bool       `json:"conflictResolved"`
}

// Commit is an immutable record of a set of file changes on one branch.
// The hash is content-derived and unique repository-wide.
type Commit struct {
	Hash         string          `json:"hash"`
	Message      string          `json:"message"`
	Description  string          `json:"description,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	Author       Signature       `json:"author"`
	Branch       string          `json:"branch"`
	Changes      []FileChange    `json:"changes"`
	LinesAdded   int             `json:"linesAdded"`
	LinesDeleted int             `json:"linesDeleted"`
	Parents      []string        `json:"parents,omitempty"`
	IsMerge      bool            `json:"isMerge"`
	Automation   *AutomationInfo `json:"automation,omitempty"`
	Verified     bool            `json:"verified"`
}

// Branch is a named pointer into commit history.
type Branch struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	CreatedBy    Signature    `json:"createdBy"`
	CreatedAt    time.Time    `json:"createdAt"`
	LastCommitAt time.Time    `json:"lastCommitAt"`
	BaseBranch   string       `json:"baseBranch"`
	Protected    bool         `json:"protected"`
	Status       BranchStatus `json:"status"`
	TouchedPaths []string     `json:"touchedPaths,omitempty"`
}

// ConflictSide is one of the two competing changes inside a conflict.
type ConflictSide struct {
	Author    Signature `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
	Rationale string    `json:"rationale,omitempty"`
}

// Suggestion is the advisor's proposed way out of a conflict. Advisory only,
// never authoritative.
type Suggestion struct {
	Resolution     string  `json:"resolution"`
	Confidence     float64 `json:"confidence"`
	Rationale      string  `json:"rationale,omitempty"`
	ReviewRequired bool    `json:"reviewRequired"`
}

// MergeConflict is a detected incompatibility for one file between two
// divergent change sets.
type MergeConflict struct {
	ID         string           `json:"id"`
	Kind       ConflictKind     `json:"kind"`
	Path       string           `json:"path"`
	LineStart  int              `json:"lineStart,omitempty"`
	LineEnd    int              `json:"lineEnd,omitempty"`
	Severity   Severity         `json:"severity"`
	Ours       ConflictSide     `json:"ours"`
	Theirs     ConflictSide     `json:"theirs"`
	Status     ResolutionStatus `json:"status"`
	Resolution string           `json:"resolution,omitempty"`
	ResolvedBy string           `json:"resolvedBy,omitempty"`
	ResolvedAt time.Time        `json:"resolvedAt,omitempty"`
	Suggestion *Suggestion      `json:"suggestion,omitempty"`
}

// Approval is one recorded reviewer approval on a merge request.
type Approval struct {
	ApprovedBy string    `json:"approvedBy"`
	ApprovedAt time.Time `json:"approvedAt"`
}

// MergeRequest proposes integrating a source branch into a target branch.
type MergeRequest struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description,omitempty"`
	SourceBranch string             `json:"sourceBranch"`
	TargetBranch string             `json:"targetBranch"`
	CreatedBy    Signature          `json:"createdBy"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Status       MergeRequestStatus `json:"status"`
	Reviewers    []string           `json:"reviewers,omitempty"`
	Approvals    []Approval         `json:"approvals,omitempty"`
	ChangedFiles []FileChange       `json:"changedFiles,omitempty"`
	LinesAdded   int                `json:"linesAdded"`
	LinesDeleted int                `json:"linesDeleted"`
	HasConflicts bool               `json:"hasConflicts"`
	Conflicts    []*MergeConflict   `json:"conflicts,omitempty"`
	MergedBy     string             `json:"mergedBy,omitempty"`
	MergedAt     time.Time          `json:"mergedAt,omitempty"`
	MergeCommit  string             `json:"mergeCommit,omitempty"`
	Strategy     MergeStrategy      `json:"strategy,omitempty"`
}

// Tag is an immutable label bound to one commit.
type Tag struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CommitHash   string    `json:"commitHash"`
	CreatedBy    Signature `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	Kind         TagKind   `json:"kind"`
	Version      string    `json:"version,omitempty"`
	ReleaseNotes string    `json:"releaseNotes,omitempty"`
	QualityScore float64   `json:"qualityScore,omitempty"`
}

// BranchingStrategy configures naming prefixes and branch lifecycle policy
// for one repository.
type BranchingStrategy struct {
	FeaturePrefix     string `json:"featurePrefix"`
	BugfixPrefix      string `json:"bugfixPrefix"`
	ReleasePrefix     string `json:"releasePrefix"`
	ExperimentPrefix  string `json:"experimentPrefix"`
	AutoDeleteOnMerge bool   `json:"autoDeleteOnMerge"`
	MaxBranchAgeDays  int    `json:"maxBranchAgeDays,omitempty"`
}

// DefaultBranchingStrategy returns the conventional prefix set.
func DefaultBranchingStrategy() BranchingStrategy {
	return BranchingStrategy{
		FeaturePrefix:    "feature/",
		BugfixPrefix:     "bugfix/",
		ReleasePrefix:    "release/",
		ExperimentPrefix: "ai-experiment/",
	}
}

// AgentMergeRules are the merge-policy knobs specific to agent-authored work.
type AgentMergeRules struct {
	RequireHumanApproval bool    `json:"requireHumanApproval"`
	MinConfidence        float64 `json:"minConfidence,omitempty"`
}

// MergePolicy configures review and auto-merge behavior for one repository.
type MergePolicy struct {
	RequireReview     bool            `json:"requireReview"`
	RequiredApprovals int             `json:"requiredApprovals"`
	AllowAutoMerge    bool            `json:"allowAutoMerge"`
	AgentRules        AgentMergeRules `json:"agentRules"`
}

// Statistics are the repository-wide aggregate counters. TotalMerges only
// ever increases; ConflictRate is the running fraction of merges that carried
// at least one conflict.
type Statistics struct {
	ActiveBranches    int     `json:"activeBranches"`
	MergedBranches    int     `json:"mergedBranches"`
	TotalMerges       int     `json:"totalMerges"`
	AutomatedCommits  int     `json:"automatedCommits"`
	ConflictRate      float64 `json:"conflictRate"`
	AverageMergeHours float64 `json:"averageMergeHours"`
}

// Collaborator is a member of the repository shell supplied by the
// repository provider.
type Collaborator struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Kind        AuthorKind `json:"kind"`
	Permission  string     `json:"permission,omitempty"`
}

// Repository is a named collaboration space. It owns its branches, commits,
// tags, and merge requests exclusively; all mutation goes through the Engine
// under the repository's lock.
type Repository struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	DefaultBranch     string          `json:"defaultBranch"`
	ProtectedBranches []string        `json:"protectedBranches,omitempty"`
	CurrentVersion    string          `json:"currentVersion,omitempty"`
	Strategy          BranchingStrategy `json:"strategy"`
	Policy            MergePolicy     `json:"policy"`
	Stats             Statistics      `json:"stats"`
	Collaborators     []Collaborator  `json:"collaborators,omitempty"`
	Branches          []*Branch       `json:"branches"`
	Commits           []*Commit       `json:"commits"`
	Tags              []*Tag          `json:"tags,omitempty"`
	MergeRequests     []*MergeRequest `json:"mergeRequests,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// BranchComparison is the result of comparing a source branch against a
// target branch. Ahead/behind are a set difference over commit identifiers
// per branch, not a topological ancestor walk; the approximation holds for
// linear-ish histories.
type BranchComparison struct {
	Source         string           `json:"source"`
	Target         string           `json:"target"`
	Ahead          int              `json:"ahead"`
	Behind         int              `json:"behind"`
	ChangedFiles   []FileChange     `json:"changedFiles,omitempty"`
	Conflicts      []*MergeConflict `json:"conflicts,omitempty"`
	Complexity     MergeComplexity  `json:"complexity"`
	Recommendation Recommendation   `json:"recommendation"`
}

func (r *Repository) branch(name string) *Branch {
	for _, b := range r.Branches {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (r *Repository) mergeRequest(id string) *MergeRequest {
	for _, mr := range r.MergeRequests {
		if mr.ID == id {
			return mr
		}
	}
	return nil
}

func (r *Repository) commit(hash string) *Commit {
	for _, c := range r.Commits {
		if c.Hash == hash {
			return c
		}
	}
	return nil
}

// tip returns the most recent commit hash on a branch, or "" when the branch
// has no commits yet. Commit history is append-only so the last match wins.
func (r *Repository) tip(branchName string) string {
	tip := ""
	for _, c := range r.Commits {
		if c.Branch == branchName {
			tip = c.Hash
		}
	}
	return tip
}

func (r *Repository) isProtected(branchName string) bool {
	if branchName == r.DefaultBranch {
		return true
	}
	for _, name := range r.ProtectedBranches {
		if name == branchName {
			return true
		}
	}
	return false
}

func (mr *MergeRequest) unresolvedCount() int {
	count := 0
	for _, conflict := range mr.Conflicts {
		if conflict.Status == ConflictUnresolved {
			count++
		}
	}
	return count
}
