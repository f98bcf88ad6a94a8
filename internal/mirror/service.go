// Package mirror materializes the engine's history into real on-disk git
// repositories so external audit tooling can consume it. One mirror repo per
// tracked repository; every engine commit, merge, and tag becomes a commit
// or tag on the mirror's journal branch.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"concord/api/internal/vcs"
)

const journalBranch = "main"

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordCommit appends one engine commit to the repository's audit journal.
func (s *Service) RecordCommit(repoID string, commit *vcs.Commit) error {
	lock := s.repoLock(repoID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(repoID)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(commit, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal commit record: %w", err)
	}

	relPath := filepath.Join("commits", commit.Hash+".json")
	message := fmt.Sprintf("commit %s on %s: %s", commit.Hash, commit.Branch, commit.Message)
	if commit.IsMerge {
		message = fmt.Sprintf("merge %s on %s: %s", commit.Hash, commit.Branch, commit.Message)
	}
	if _, err := s.commitFile(repo, repoID, relPath, payload, commit.Author.Name, message, commit.CreatedAt); err != nil {
		return err
	}
	return nil
}

// RecordTag writes the tag record to the journal and tags the resulting
// mirror commit. The git tag marks the journal position at tag time, not the
// original engine commit.
func (s *Service) RecordTag(repoID string, tag *vcs.Tag) error {
	lock := s.repoLock(repoID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(repoID)
	if err != nil {
		return err
	}

	payload, err := json.MarshalIndent(tag, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tag record: %w", err)
	}

	relPath := filepath.Join("tags", tag.Name+".json")
	message := fmt.Sprintf("tag %s -> commit %s", tag.Name, tag.CommitHash)
	hash, err := s.commitFile(repo, repoID, relPath, payload, tag.CreatedBy.Name, message, tag.CreatedAt)
	if err != nil {
		return err
	}

	_, err = repo.CreateTag(tag.Name, hash, &git.CreateTagOptions{
		Tagger: &object.Signature{
			Name:  "concord",
			Email: "concord@localhost",
			When:  tag.CreatedAt,
		},
		Message: tag.Name,
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return fmt.Errorf("create mirror tag: %w", err)
	}
	return nil
}

func (s *Service) repoPath(repoID string) string {
	return filepath.Join(s.baseDir, repoID)
}

func (s *Service) repoLock(repoID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[repoID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[repoID] = lock
	return lock
}

// ensureRepo opens the mirror repo, initializing it with a manifest commit
// on first use. Caller holds the repo lock.
func (s *Service) ensureRepo(repoID string) (*git.Repository, error) {
	path := s.repoPath(repoID)
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("open mirror repo: %w", err)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat mirror path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init mirror repo: %w", err)
	}

	manifest, err := json.MarshalIndent(map[string]string{
		"repository": repoID,
		"createdAt":  time.Now().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	hash, err := s.commitFile(repo, repoID, "mirror.json", manifest, "concord", "Initialize audit mirror", time.Now())
	if err != nil {
		return nil, err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(journalBranch), hash)); err != nil {
		return nil, fmt.Errorf("set journal branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(journalBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to journal branch: %w", err)
	}
	return repo, nil
}

func (s *Service) commitFile(repo *git.Repository, repoID, relPath string, payload []byte, author, message string, when time.Time) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	absPath := filepath.Join(s.repoPath(repoID), relPath)
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create record dir: %w", err)
	}
	if err := os.WriteFile(absPath, append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write record: %w", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(relPath)); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add record: %w", err)
	}

	if author == "" {
		author = "concord"
	}
	if when.IsZero() {
		when = time.Now()
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: sanitizeEmail(author) + "@mirror.concord.local",
			When:  when,
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit record: %w", err)
	}
	return hash, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
