// Package gitrepo keeps the content history of every submission in its own
// git repository, one tagged commit per version.
package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	contentFile = "content.md"
	metaFile    = "submission.json"
)

var ErrNoHistory = errors.New("submission has no history")

type Content struct {
	Title        string   `json:"title"`
	Abstract     string   `json:"abstract"`
	Keywords     []string `json:"keywords"`
	VersionLabel string   `json:"version_label"`
	ContentMD    string   `json:"-"`
}

type CommitInfo struct {
	Hash         string    `json:"hash"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	VersionLabel string    `json:"version_label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Service struct {
	baseDir string
	now     func() time.Time
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits content as the next version of the submission and tags it
// with its version label. The repository is created on first use.
func (s *Service) Record(submissionID string, content Content, author, message string) (CommitInfo, error) {
	lock := s.submissionLock(submissionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(submissionID)
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	meta, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal submission meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, metaFile), append(meta, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", metaFile, err)
	}
	if err := os.WriteFile(filepath.Join(root, contentFile), []byte(content.ContentMD), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	for _, name := range []string{metaFile, contentFile} {
		if _, err := worktree.Add(name); err != nil {
			return CommitInfo{}, fmt.Errorf("git add %s: %w", name, err)
		}
	}

	when := s.now()
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@users.journal.local", sanitizeEmail(author)),
			When:  when,
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	tagged := ""
	if content.VersionLabel != "" {
		_, err = repo.CreateTag(content.VersionLabel, hash, &git.CreateTagOptions{
			Tagger:  &object.Signature{Name: "journal", Email: "journal@localhost", When: when},
			Message: content.VersionLabel,
		})
		switch {
		case err == nil:
			tagged = content.VersionLabel
		case !errors.Is(err, git.ErrTagExists):
			return CommitInfo{}, fmt.Errorf("create tag %s: %w", content.VersionLabel, err)
		}
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	info := toCommitInfo(commitObj)
	info.VersionLabel = tagged
	return info, nil
}

// History lists the newest commits first. limit <= 0 lists everything.
func (s *Service) History(submissionID string, limit int) ([]CommitInfo, error) {
	lock := s.submissionLock(submissionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(submissionID)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	labels, err := tagsByCommit(repo)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(c *object.Commit) error {
		info := toCommitInfo(c)
		info.VersionLabel = labels[c.Hash]
		items = append(items, info)
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// ContentAt reads the content recorded at ref, a version label or a commit hash.
func (s *Service) ContentAt(submissionID, ref string) (Content, error) {
	lock := s.submissionLock(submissionID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(submissionID)
	if err != nil {
		return Content{}, err
	}
	commitObj, err := resolveCommit(repo, ref)
	if err != nil {
		return Content{}, err
	}
	return readContent(commitObj)
}

func (s *Service) repoPath(submissionID string) string {
	return filepath.Join(s.baseDir, submissionID)
}

func (s *Service) open(submissionID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(submissionID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) openOrInit(submissionID string) (*git.Repository, error) {
	repo, err := s.open(submissionID)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, ErrNoHistory) {
		return nil, err
	}
	path := s.repoPath(submissionID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) submissionLock(submissionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[submissionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[submissionID] = lock
	}
	return lock
}

func tagsByCommit(repo *git.Repository) (map[plumbing.Hash]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer iter.Close()

	labels := map[plumbing.Hash]string{}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tag, err := repo.TagObject(ref.Hash()); err == nil {
			target = tag.Target
		}
		labels[target] = ref.Name().Short()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return labels, nil
}

func resolveCommit(repo *git.Repository, ref string) (*object.Commit, error) {
	if tagRef, err := repo.Tag(ref); err == nil {
		if tag, err := repo.TagObject(tagRef.Hash()); err == nil {
			return tag.Commit()
		}
		return repo.CommitObject(tagRef.Hash())
	}
	if len(ref) == 40 {
		return repo.CommitObject(plumbing.NewHash(ref))
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return repo.CommitObject(*hash)
}

func readContent(commitObj *object.Commit) (Content, error) {
	var content Content
	meta, err := readFile(commitObj, metaFile)
	if err != nil {
		return Content{}, err
	}
	if err := json.Unmarshal([]byte(meta), &content); err != nil {
		return Content{}, fmt.Errorf("decode %s: %w", metaFile, err)
	}
	if content.ContentMD, err = readFile(commitObj, contentFile); err != nil {
		return Content{}, err
	}
	return content, nil
}

func readFile(commitObj *object.Commit, name string) (string, error) {
	file, err := commitObj.File(name)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", name, err)
	}
	text, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return text, nil
}

func toCommitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      c.Hash.String()[:7],
		Message:   c.Message,
		Author:    c.Author.Name,
		CreatedAt: c.Author.When,
	}
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
