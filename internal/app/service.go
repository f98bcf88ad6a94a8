package app

import (
	"context"
	"log"
	"strings"

	"concord/api/internal/identity"
	"concord/api/internal/mirror"
	"concord/api/internal/vcs"
)

// Service ties the version control engine to the collaborator directory and
// the optional audit mirror. All HTTP handlers go through it.
type Service struct {
	engine    *vcs.Engine
	directory identity.Directory
	mirror    *mirror.Service
}

func New(engine *vcs.Engine, directory identity.Directory, auditMirror *mirror.Service) *Service {
	return &Service{
		engine:    engine,
		directory: directory,
		mirror:    auditMirror,
	}
}

type InitializeRepositoryInput struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Branches       []string              `json:"branches,omitempty"`
	Collaborators  []vcs.Collaborator    `json:"collaborators,omitempty"`
	Strategy       vcs.BranchingStrategy `json:"strategy"`
	Policy         vcs.MergePolicy       `json:"policy"`
	InitialVersion string                `json:"initialVersion,omitempty"`
}

type CreateBranchInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	BaseBranch  string         `json:"baseBranch,omitempty"`
	CreatedBy   string         `json:"createdBy"`
	AuthorKind  vcs.AuthorKind `json:"authorKind,omitempty"`
	Type        vcs.BranchType `json:"type,omitempty"`
}

type CreateCommitInput struct {
	Branch      string              `json:"branch"`
	Message     string              `json:"message"`
	Description string              `json:"description,omitempty"`
	AuthorID    string              `json:"authorId"`
	AuthorKind  vcs.AuthorKind      `json:"authorKind,omitempty"`
	Changes     []vcs.FileChange    `json:"changes,omitempty"`
	Automation  *vcs.AutomationInfo `json:"automation,omitempty"`
}

type CreateMergeRequestInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	SourceBranch string   `json:"sourceBranch"`
	TargetBranch string   `json:"targetBranch"`
	CreatedBy    string   `json:"createdBy"`
	Reviewers    []string `json:"reviewers,omitempty"`
}

type ResolveConflictInput struct {
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolvedBy"`
}

type MergeInput struct {
	MergedBy string            `json:"mergedBy"`
	Strategy vcs.MergeStrategy `json:"strategy,omitempty"`
}

type CreateTagInput struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	CommitHash   string      `json:"commitHash"`
	CreatedBy    string      `json:"createdBy"`
	Kind         vcs.TagKind `json:"kind"`
	Version      string      `json:"version,omitempty"`
	ReleaseNotes string      `json:"releaseNotes,omitempty"`
}

func (s *Service) InitializeRepository(ctx context.Context, input InitializeRepositoryInput) (*vcs.Repository, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "name is required", nil)
	}

	if registrar, ok := s.directory.(interface{ Register(vcs.Collaborator) }); ok {
		for _, collaborator := range input.Collaborators {
			registrar.Register(collaborator)
		}
	}

	repo, err := s.engine.InitializeVersionControl(ctx, vcs.RepositoryShell{
		ID:            input.ID,
		Name:          input.Name,
		Collaborators: input.Collaborators,
		Branches:      input.Branches,
	}, input.Strategy, input.Policy, input.InitialVersion)
	return repo, fromEngine(err)
}

func (s *Service) GetRepository(id string) (*vcs.Repository, error) {
	repo, err := s.engine.GetRepository(id)
	return repo, fromEngine(err)
}

func (s *Service) ListRepositories() []*vcs.Repository {
	return s.engine.ListRepositories()
}

func (s *Service) CreateBranch(ctx context.Context, repoID string, input CreateBranchInput) (*vcs.Branch, error) {
	branch, err := s.engine.CreateBranch(ctx, repoID, vcs.CreateBranchInput{
		Name:        input.Name,
		Description: input.Description,
		BaseBranch:  input.BaseBranch,
		Creator:     s.signature(ctx, input.CreatedBy, input.AuthorKind),
		Type:        input.Type,
	})
	return branch, fromEngine(err)
}

func (s *Service) DeleteBranch(ctx context.Context, repoID, branchName, deletedBy string) error {
	return fromEngine(s.engine.DeleteBranch(ctx, repoID, branchName, deletedBy))
}

func (s *Service) BranchCommits(repoID, branchName string) ([]*vcs.Commit, error) {
	commits, err := s.engine.GetBranchCommits(repoID, branchName)
	return commits, fromEngine(err)
}

func (s *Service) CreateCommit(ctx context.Context, repoID string, input CreateCommitInput) (*vcs.Commit, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "message is required", nil)
	}
	commit, err := s.engine.CreateCommit(ctx, repoID, input.Branch, vcs.CommitInput{
		Message:     input.Message,
		Description: input.Description,
		Author:      s.signature(ctx, input.AuthorID, input.AuthorKind),
		Changes:     input.Changes,
		Automation:  input.Automation,
	})
	if err != nil {
		return nil, fromEngine(err)
	}
	s.recordCommit(repoID, commit)
	return commit, nil
}

func (s *Service) CompareBranches(repoID, source, target string) (*vcs.BranchComparison, error) {
	comparison, err := s.engine.CompareBranches(repoID, source, target)
	return comparison, fromEngine(err)
}

func (s *Service) CreateMergeRequest(ctx context.Context, repoID string, input CreateMergeRequestInput) (*vcs.MergeRequest, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "title is required", nil)
	}
	request, err := s.engine.CreateMergeRequest(ctx, repoID, vcs.CreateMergeRequestInput{
		Title:        input.Title,
		Description:  input.Description,
		SourceBranch: input.SourceBranch,
		TargetBranch: input.TargetBranch,
		CreatedBy:    s.signature(ctx, input.CreatedBy, vcs.AuthorHuman),
		Reviewers:    input.Reviewers,
	})
	return request, fromEngine(err)
}

func (s *Service) ApproveMergeRequest(ctx context.Context, repoID, requestID, approvedBy string) (*vcs.MergeRequest, error) {
	request, err := s.engine.ApproveMergeRequest(ctx, repoID, requestID, s.displayName(ctx, approvedBy))
	return request, fromEngine(err)
}

func (s *Service) CloseMergeRequest(ctx context.Context, repoID, requestID, closedBy string) (*vcs.MergeRequest, error) {
	request, err := s.engine.CloseMergeRequest(ctx, repoID, requestID, s.displayName(ctx, closedBy))
	return request, fromEngine(err)
}

func (s *Service) ResolveConflict(ctx context.Context, repoID, requestID, conflictID string, input ResolveConflictInput) (*vcs.MergeRequest, error) {
	if strings.TrimSpace(input.Resolution) == "" {
		return nil, domainError(422, "VALIDATION_ERROR", "resolution is required", nil)
	}
	request, err := s.engine.ResolveMergeConflict(ctx, repoID, requestID, conflictID, input.Resolution, s.displayName(ctx, input.ResolvedBy))
	return request, fromEngine(err)
}

func (s *Service) Merge(ctx context.Context, repoID, requestID string, input MergeInput) (*vcs.MergeRequest, error) {
	request, err := s.engine.MergeBranches(ctx, repoID, requestID, s.signature(ctx, input.MergedBy, vcs.AuthorHuman), input.Strategy)
	if err != nil {
		return nil, fromEngine(err)
	}
	if request.MergeCommit != "" {
		if mergeCommit, err := s.engine.GetCommit(repoID, request.MergeCommit); err == nil {
			s.recordCommit(repoID, mergeCommit)
		}
	}
	return request, nil
}

func (s *Service) CreateTag(ctx context.Context, repoID string, input CreateTagInput) (*vcs.Tag, error) {
	tag, err := s.engine.CreateTag(ctx, repoID, vcs.CreateTagInput{
		Name:         input.Name,
		Description:  input.Description,
		CommitHash:   input.CommitHash,
		CreatedBy:    s.signature(ctx, input.CreatedBy, vcs.AuthorHuman),
		Kind:         input.Kind,
		Version:      input.Version,
		ReleaseNotes: input.ReleaseNotes,
	})
	if err != nil {
		return nil, fromEngine(err)
	}
	if s.mirror != nil {
		if err := s.mirror.RecordTag(repoID, tag); err != nil {
			log.Printf("audit mirror: record tag %s on %s: %v", tag.Name, repoID, err)
		}
	}
	return tag, nil
}

// signature resolves a user identifier through the directory, falling back
// to the raw identifier when there is no entry.
func (s *Service) signature(ctx context.Context, userID string, kind vcs.AuthorKind) vcs.Signature {
	if kind == "" {
		kind = vcs.AuthorHuman
	}
	sig := vcs.Signature{ID: userID, Name: userID, Kind: kind}
	if s.directory == nil {
		return sig
	}
	collaborator, err := s.directory.Resolve(ctx, userID)
	if err != nil {
		return sig
	}
	sig.Name = collaborator.DisplayName
	if collaborator.Kind != "" {
		sig.Kind = collaborator.Kind
	}
	return sig
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	return s.signature(ctx, userID, vcs.AuthorHuman).Name
}

// recordCommit mirrors a commit into the audit journal. Mirror failures are
// logged, never surfaced: the engine state is already committed.
func (s *Service) recordCommit(repoID string, commit *vcs.Commit) {
	if s.mirror == nil || commit == nil {
		return
	}
	if err := s.mirror.RecordCommit(repoID, commit); err != nil {
		log.Printf("audit mirror: record commit %s on %s: %v", commit.Hash, repoID, err)
	}
}
