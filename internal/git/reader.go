package git

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

// ErrNoDefaultBranch is returned when HEAD cannot be resolved, e.g. in a
// freshly initialized repository with no commits.
var ErrNoDefaultBranch = errors.New("no default branch")

// CommitInfo holds summary information about a commit.
type CommitInfo struct {
	Hash          string
	Parents       []string
	Author        string
	AuthorDate    time.Time
	Committer     string
	CommitterDate time.Time
	SignedByKeyID string // empty when the commit carries no usable signature
	Message       string
}

// Reader provides read access to the repository a hook runs in. Hooks are
// invoked with the working directory set to the bare repository, so the
// zero-argument callers open ".".
type Reader struct {
	repo *git.Repository
}

// Open opens the repository at the given path (bare or not).
func Open(path string) (*Reader, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open repo %s: %w", path, err)
	}
	return &Reader{repo: repo}, nil
}

// NewReader wraps an already opened repository. Used by tests.
func NewReader(repo *git.Repository) *Reader {
	return &Reader{repo: repo}
}

// DefaultBranch returns the short name of the branch HEAD points at.
func (r *Reader) DefaultBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoDefaultBranch, err)
	}
	return head.Name().Short(), nil
}

// FileAtHead returns the content of a file at the tip of the default
// branch. Missing files surface as an error wrapping object.ErrFileNotFound.
func (r *Reader) FileAtHead(name string) ([]byte, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDefaultBranch, err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("get head commit: %w", err)
	}

	file, err := commit.File(name)
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", name, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", name, err)
	}
	return []byte(content), nil
}

// BlobContent returns the content of the blob with the given hash. The push
// certificate is delivered this way: git stores it as a blob and hands the
// hook its id via GIT_PUSH_CERT.
func (r *Reader) BlobContent(hash string) (string, error) {
	blob, err := r.repo.BlobObject(plumbing.NewHash(hash))
	if err != nil {
		return "", fmt.Errorf("get blob %s: %w", hash, err)
	}

	reader, err := blob.Reader()
	if err != nil {
		return "", fmt.Errorf("read blob %s: %w", hash, err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read blob %s: %w", hash, err)
	}
	return string(content), nil
}

// MergeBase returns the merge base of the two commits, or ok=false when the
// histories are unrelated.
func (r *Reader) MergeBase(oldHash, newHash string) (string, bool, error) {
	oldCommit, err := r.repo.CommitObject(plumbing.NewHash(oldHash))
	if err != nil {
		return "", false, fmt.Errorf("get commit %s: %w", oldHash, err)
	}
	newCommit, err := r.repo.CommitObject(plumbing.NewHash(newHash))
	if err != nil {
		return "", false, fmt.Errorf("get commit %s: %w", newHash, err)
	}

	bases, err := oldCommit.MergeBase(newCommit)
	if err != nil {
		return "", false, fmt.Errorf("merge base %s %s: %w", oldHash, newHash, err)
	}
	if len(bases) == 0 {
		return "", false, nil
	}
	return bases[0].Hash.String(), true, nil
}

// LogBetween lists the commits reachable from newHash but not from
// stopHash, newest first. An empty stopHash lists everything reachable from
// newHash. A limit of zero means unlimited.
func (r *Reader) LogBetween(newHash, stopHash string, limit int) ([]CommitInfo, error) {
	newCommit, err := r.repo.CommitObject(plumbing.NewHash(newHash))
	if err != nil {
		return nil, fmt.Errorf("get commit %s: %w", newHash, err)
	}

	seen := map[plumbing.Hash]bool{}
	if stopHash != "" {
		stopCommit, err := r.repo.CommitObject(plumbing.NewHash(stopHash))
		if err != nil {
			return nil, fmt.Errorf("get commit %s: %w", stopHash, err)
		}
		// Marks everything reachable from stopHash; the walk covers the
		// old side's full history.
		iter := object.NewCommitPreorderIter(stopCommit, nil, nil)
		err = iter.ForEach(func(c *object.Commit) error {
			seen[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", stopHash, err)
		}
	}

	// Committer-time order keeps the listing newest first even across
	// merge commits, where a plain DFS would follow the first parent.
	var commits []CommitInfo
	iter := object.NewCommitIterCTime(newCommit, seen, nil)
	for {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", newHash, err)
		}
		commits = append(commits, commitToInfo(c))
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}

// PatchBase64 produces the unified diff between the trees of the two
// commits, base64 encoded for transport.
func (r *Reader) PatchBase64(oldHash, newHash string) (string, error) {
	oldCommit, err := r.repo.CommitObject(plumbing.NewHash(oldHash))
	if err != nil {
		return "", fmt.Errorf("get commit %s: %w", oldHash, err)
	}
	newCommit, err := r.repo.CommitObject(plumbing.NewHash(newHash))
	if err != nil {
		return "", fmt.Errorf("get commit %s: %w", newHash, err)
	}

	patch, err := oldCommit.Patch(newCommit)
	if err != nil {
		return "", fmt.Errorf("generate patch: %w", err)
	}

	var buf bytes.Buffer
	if err := patch.Encode(&buf); err != nil {
		return "", fmt.Errorf("encode patch: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func commitToInfo(c *object.Commit) CommitInfo {
	info := CommitInfo{
		Hash:          c.Hash.String(),
		Author:        fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		AuthorDate:    c.Author.When.UTC(),
		Committer:     fmt.Sprintf("%s <%s>", c.Committer.Name, c.Committer.Email),
		CommitterDate: c.Committer.When.UTC(),
		Message:       strings.TrimSpace(c.Message),
	}
	for _, p := range c.ParentHashes {
		info.Parents = append(info.Parents, p.String())
	}
	if c.PGPSignature != "" {
		info.SignedByKeyID = issuerKeyID(c.PGPSignature)
	}
	return info
}

// issuerKeyID extracts the long key id from an armored PGP signature.
// Non-PGP signatures (e.g. SSH) yield an empty id.
func issuerKeyID(armored string) string {
	block, err := armor.Decode(strings.NewReader(armored))
	if err != nil {
		return ""
	}

	reader := packet.NewReader(block.Body)
	for {
		p, err := reader.Next()
		if err != nil {
			return ""
		}
		if sig, ok := p.(*packet.Signature); ok && sig.IssuerKeyId != nil {
			return fmt.Sprintf("%016X", *sig.IssuerKeyId)
		}
	}
}
