package vcs

import (
	"context"
	"strings"
	"time"

	"github.com/lucsky/cuid"
)

// CreateTagInput describes an immutable label to bind to one commit.
type CreateTagInput struct {
	Name         string
	Description  string
	CommitHash   string
	CreatedBy    Signature
	Kind         TagKind
	Version      string
	ReleaseNotes string
}

// CreateTag binds an immutable tag to an existing commit. A release tag with
// a version string updates the repository's current version; a checkpoint tag
// inherits a quality score from the commit's automation confidence when one
// is present.
func (e *Engine) CreateTag(ctx context.Context, repoID string, input CreateTagInput) (*Tag, error) {
	var created *Tag
	err := e.mutate(ctx, repoID, func(repo *Repository) error {
		name := strings.TrimSpace(input.Name)
		if name == "" {
			return policyViolation("tag name is required")
		}
		for _, tag := range repo.Tags {
			if tag.Name == name {
				return policyViolation("tag %q already exists", name)
			}
		}
		commit := repo.commit(input.CommitHash)
		if commit == nil {
			return notFound("commit %q not found in repository %q", input.CommitHash, repoID)
		}

		tag := &Tag{
			ID:           cuid.New(),
			Name:         name,
			Description:  input.Description,
			CommitHash:   commit.Hash,
			CreatedBy:    input.CreatedBy,
			CreatedAt:    time.Now(),
			Kind:         input.Kind,
			Version:      input.Version,
			ReleaseNotes: input.ReleaseNotes,
		}
		if tag.Kind == TagCheckpoint && commit.Automation != nil {
			tag.QualityScore = commit.Automation.Confidence
		}
		repo.Tags = append(repo.Tags, tag)

		if tag.Kind == TagRelease && tag.Version != "" {
			repo.CurrentVersion = tag.Version
		}

		copied := *tag
		created = &copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
