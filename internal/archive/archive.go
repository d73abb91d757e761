// Package archive keeps an append-only git history of every offer version.
// Each property gets one repository; each negotiation chain gets a branch
// named after its root offer, and every offer in the chain is a file on it.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dealroom/api/internal/document"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const mainBranch = "main"

// Snapshot is the archived state of one offer version.
type Snapshot struct {
	OfferID            string            `json:"offerId"`
	PropertyID         string            `json:"propertyId"`
	BuyerID            string            `json:"buyerId"`
	CreatedBy          string            `json:"createdBy"`
	OfferType          string            `json:"offerType"`
	Status             string            `json:"status"`
	CounterToOfferID   string            `json:"counterToOfferId,omitempty"`
	CounteredByOfferID string            `json:"counteredByOfferId,omitempty"`
	ExpirationDate     string            `json:"offerExpirationDate,omitempty"`
	ExpirationTime     string            `json:"offerExpirationTime,omitempty"`
	Version            int               `json:"version"`
	Document           document.Document `json:"document"`
}

type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

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

// Record commits snap to the chain branch, creating the property repository
// and the branch on first use.
func (s *Service) Record(chainID string, snap Snapshot, author, message string, at time.Time) (Entry, error) {
	lock := s.propertyLock(snap.PropertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(snap.PropertyID, author, at)
	if err != nil {
		return Entry{}, err
	}
	if err := checkoutChain(repo, chainBranch(chainID)); err != nil {
		return Entry{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Entry{}, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	name := offerFile(snap.OfferID)
	fullPath := filepath.Join(worktree.Filesystem.Root(), name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Entry{}, fmt.Errorf("create offers dir: %w", err)
	}
	if err := os.WriteFile(fullPath, append(payload, '\n'), 0o644); err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return Entry{}, fmt.Errorf("git add snapshot: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{Author: signature(author, at)})
	if errors.Is(err, git.ErrEmptyCommit) {
		head, headErr := repo.Head()
		if headErr != nil {
			return Entry{}, fmt.Errorf("read head: %w", headErr)
		}
		hash = head.Hash()
	} else if err != nil {
		return Entry{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Entry{}, fmt.Errorf("read commit: %w", err)
	}
	return toEntry(commitObj), nil
}

// History lists the chain's commits, newest first.
func (s *Service) History(propertyID, chainID string, limit int) ([]Entry, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(propertyID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(chainBranch(chainID)), true)
	if err != nil {
		return nil, fmt.Errorf("resolve chain %s: %w", chainID, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		if commitObj.NumParents() == 0 {
			return io.EOF
		}
		items = append(items, toEntry(commitObj))
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

// SnapshotAt reads the archived state of offerID as of commit hash.
func (s *Service) SnapshotAt(propertyID, hash, offerID string) (Snapshot, error) {
	lock := s.propertyLock(propertyID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(propertyID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return Snapshot{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(offerFile(offerID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s from commit: %w", offerID, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) ensureRepo(propertyID, author string, at time.Time) (*git.Repository, error) {
	path := s.repoPath(propertyID)
	if _, err := os.Stat(path); err == nil {
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("open repo: %w", err)
		}
		return repo, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.Marshal(map[string]string{"propertyId": propertyID})
	if err != nil {
		return nil, fmt.Errorf("marshal property marker: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "property.json"), append(payload, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write property marker: %w", err)
	}
	if _, err := worktree.Add("property.json"); err != nil {
		return nil, fmt.Errorf("git add property marker: %w", err)
	}
	hash, err := worktree.Commit("Open negotiation archive", &git.CommitOptions{Author: signature(author, at)})
	if err != nil {
		return nil, fmt.Errorf("commit property marker: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(mainBranch), hash)); err != nil {
		return nil, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(propertyID string) string {
	return filepath.Join(s.baseDir, filepath.Base(filepath.Clean("/"+propertyID)))
}

func (s *Service) propertyLock(propertyID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[propertyID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[propertyID] = lock
	return lock
}

// checkoutChain switches to branch, branching from main when it is new so a
// fresh chain never inherits another chain's files.
func checkoutChain(repo *git.Repository, branch string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	if _, err := repo.Reference(branchRef, true); err != nil {
		if !errors.Is(err, plumbing.ErrReferenceNotFound) {
			return fmt.Errorf("resolve branch %s: %w", branch, err)
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(mainBranch), Force: true}); err != nil {
			return fmt.Errorf("checkout main: %w", err)
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
			return fmt.Errorf("create branch checkout %s: %w", branch, err)
		}
		return nil
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return fmt.Errorf("checkout branch %s: %w", branch, err)
	}
	return nil
}

func chainBranch(chainID string) string {
	return "chain-" + chainID
}

func offerFile(offerID string) string {
	return "offers/" + filepath.Base(filepath.Clean("/"+offerID)) + ".json"
}

func signature(author string, at time.Time) *object.Signature {
	if author == "" {
		author = "dealroom"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@archive.dealroom.local", sanitizeEmail(author)),
		When:  at,
	}
}

func toEntry(commitObj *object.Commit) Entry {
	return Entry{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
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

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
