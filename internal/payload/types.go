// Package payload defines the webhook request body and its construction.
// Field names are kebab-case on the wire; tagged unions carry a "type"
// discriminator.
package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wbrijesh/refguard/internal/git"
)

// Version is the request schema version.
const Version = "1"

// Request is the full outbound body. It is assembled once per invocation
// and immutable afterwards.
type Request struct {
	Version       string          `json:"version"`
	DefaultBranch string          `json:"default-branch"`
	Config        json.RawMessage `json:"config"`
	Changes       []Change        `json:"changes"`
	PushOptions   []string        `json:"push-options"`
	Signature     Signature       `json:"signature"`
	Metadata      Metadata        `json:"metadata"`
}

// Change types.
const (
	ChangeAdd    = "add"
	ChangeRemove = "remove"
	ChangeUpdate = "update"
)

// Change is one ref change in the request. Add and remove carry a single
// commit id; update carries the old/new pair plus optional enrichment.
type Change struct {
	Type string
	Name string

	// add, remove
	Commit string

	// update
	OldCommit string
	NewCommit string
	MergeBase *string
	Force     bool
	Patch     *string // base64 unified diff
	Log       []LogEntry
}

type addRemoveChangeJSON struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

type updateChangeJSON struct {
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	OldCommit string     `json:"old-commit"`
	NewCommit string     `json:"new-commit"`
	MergeBase *string    `json:"merge-base"`
	Force     bool       `json:"force"`
	Patch     *string    `json:"patch"`
	Log       []LogEntry `json:"log"`
}

func (c Change) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ChangeAdd, ChangeRemove:
		return json.Marshal(addRemoveChangeJSON{Type: c.Type, Name: c.Name, Commit: c.Commit})
	case ChangeUpdate:
		return json.Marshal(updateChangeJSON{
			Type:      c.Type,
			Name:      c.Name,
			OldCommit: c.OldCommit,
			NewCommit: c.NewCommit,
			MergeBase: c.MergeBase,
			Force:     c.Force,
			Patch:     c.Patch,
			Log:       c.Log,
		})
	default:
		return nil, fmt.Errorf("unknown change type %q", c.Type)
	}
}

func (c *Change) UnmarshalJSON(data []byte) error {
	var raw updateChangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case ChangeAdd, ChangeRemove:
		var ar addRemoveChangeJSON
		if err := json.Unmarshal(data, &ar); err != nil {
			return err
		}
		*c = Change{Type: ar.Type, Name: ar.Name, Commit: ar.Commit}
	case ChangeUpdate:
		*c = Change{
			Type:      raw.Type,
			Name:      raw.Name,
			OldCommit: raw.OldCommit,
			NewCommit: raw.NewCommit,
			MergeBase: raw.MergeBase,
			Force:     raw.Force,
			Patch:     raw.Patch,
			Log:       raw.Log,
		}
	default:
		return fmt.Errorf("unknown change type %q", raw.Type)
	}
	return nil
}

// LogEntry is one commit in an update change's history enrichment.
type LogEntry struct {
	Hash          string    `json:"hash"`
	Parents       []string  `json:"parents"`
	Author        string    `json:"author"`
	AuthorDate    time.Time `json:"author-date"`
	Committer     string    `json:"committer"`
	CommitterDate time.Time `json:"committer-date"`
	SignedByKeyID *string   `json:"signed-by-key-id"`
	Message       string    `json:"message"`
}

// LogEntryFromCommit converts the git reader's commit summary to its wire
// form.
func LogEntryFromCommit(c git.CommitInfo) LogEntry {
	entry := LogEntry{
		Hash:          c.Hash,
		Parents:       c.Parents,
		Author:        c.Author,
		AuthorDate:    c.AuthorDate,
		Committer:     c.Committer,
		CommitterDate: c.CommitterDate,
		Message:       c.Message,
	}
	if c.SignedByKeyID != "" {
		id := c.SignedByKeyID
		entry.SignedByKeyID = &id
	}
	return entry
}

// Signature statuses, mirroring git's push certificate status letters.
const (
	StatusGood            = "good"
	StatusBad             = "bad"
	StatusUnknownValidity = "unknown-validity"
	StatusExpired         = "expired"
	StatusExpiredKey      = "expired-key"
	StatusRevokedKey      = "revoked-key"
	StatusCannotCheck     = "cannot-check"
	StatusNoSignature     = "no-signature"
)

// Nonce types.
const (
	NonceUnsolicited = "unsolicited"
	NonceMissing     = "missing"
	NonceBad         = "bad"
	NonceOK          = "ok"
	NonceSlop        = "slop"
)

// Nonce describes the push certificate nonce exchange outcome.
type Nonce struct {
	Type         string `json:"type"`
	Nonce        string `json:"nonce,omitempty"`
	StaleSeconds uint32 `json:"stale-seconds,omitempty"`
}

// Signature carries the push certificate details. Without a certificate the
// status is "no-signature" and the nonce type "missing".
type Signature struct {
	Certificate string `json:"certificate"`
	Signer      string `json:"signer"`
	Key         string `json:"key"`
	Status      string `json:"status"`
	Nonce       Nonce  `json:"nonce"`
}

// Metadata is the host platform variant. GitLab is the only platform with a
// dedicated shape; anything else collapses to "none".
type Metadata struct {
	GitLab *GitLabMetadata
}

type gitlabMetadataJSON struct {
	Type string `json:"type"`
	*GitLabMetadata
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.GitLab == nil {
		return json.Marshal(struct {
			Type string `json:"type"`
		}{"none"})
	}
	return json.Marshal(gitlabMetadataJSON{Type: "gitlab", GitLabMetadata: m.GitLab})
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}

	switch tag.Type {
	case "none":
		*m = Metadata{}
	case "gitlab":
		var gl GitLabMetadata
		if err := json.Unmarshal(data, &gl); err != nil {
			return err
		}
		*m = Metadata{GitLab: &gl}
	default:
		return fmt.Errorf("unknown metadata type %q", tag.Type)
	}
	return nil
}

// GitLabMetadata is the context GitLab exports to server hooks.
type GitLabMetadata struct {
	ID          GitLabID         `json:"id"`
	ProjectPath string           `json:"project-path"`
	Protocol    string           `json:"protocol"`
	Repository  GitLabRepository `json:"repository"`
	Username    string           `json:"username"`
}

// GitLabID identifies the pushing principal, either a user or a deploy key.
type GitLabID struct {
	Type string `json:"type"` // "user" or "key"
	ID   uint64 `json:"id"`
}

// GitLabRepository identifies the project being pushed to.
type GitLabRepository struct {
	Type string `json:"type"` // "project"
	ID   uint64 `json:"id"`
}
