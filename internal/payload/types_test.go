package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func sampleRequest() *Request {
	authorDate := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	commitDate := authorDate.Add(time.Minute)

	return &Request{
		Version:       Version,
		DefaultBranch: "main",
		Config:        json.RawMessage(`{"team":"platform"}`),
		Changes: []Change{
			{
				Type:   ChangeAdd,
				Name:   "refs/heads/feature",
				Commit: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			},
			{
				Type:      ChangeUpdate,
				Name:      "refs/heads/main",
				OldCommit: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
				NewCommit: "cccccccccccccccccccccccccccccccccccccccc",
				MergeBase: strptr("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
				Force:     false,
				Patch:     strptr("ZGlmZg=="),
				Log: []LogEntry{
					{
						Hash:          "cccccccccccccccccccccccccccccccccccccccc",
						Parents:       []string{"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
						Author:        "Alice <alice@example.com>",
						AuthorDate:    authorDate,
						Committer:     "Alice <alice@example.com>",
						CommitterDate: commitDate,
						SignedByKeyID: strptr("4AEE18F83AFDEB23"),
						Message:       "fix the thing",
					},
				},
			},
			{
				Type:   ChangeRemove,
				Name:   "refs/tags/v0",
				Commit: "dddddddddddddddddddddddddddddddddddddddd",
			},
		},
		PushOptions: []string{"notify=off"},
		Signature: Signature{
			Certificate: "cert blob",
			Signer:      "Alice <alice@example.com>",
			Key:         "4AEE18F83AFDEB23",
			Status:      StatusGood,
			Nonce:       Nonce{Type: NonceSlop, Nonce: "abc123", StaleSeconds: 42},
		},
		Metadata: Metadata{GitLab: &GitLabMetadata{
			ID:          GitLabID{Type: "user", ID: 7},
			ProjectPath: "group/project",
			Protocol:    "ssh",
			Repository:  GitLabRepository{Type: "project", ID: 42},
			Username:    "alice",
		}},
	}
}

func TestRequestRoundTrip(t *testing.T) {
	original := sampleRequest()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, &decoded)
}

func TestRequestWireFormat(t *testing.T) {
	data, err := json.Marshal(sampleRequest())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))

	for _, key := range []string{"version", "default-branch", "config", "changes", "push-options", "signature", "metadata"} {
		assert.Contains(t, raw, key)
	}

	var changes []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["changes"], &changes))
	require.Len(t, changes, 3)

	assert.JSONEq(t, `"add"`, string(changes[0]["type"]))
	assert.NotContains(t, changes[0], "old-commit")

	update := changes[1]
	assert.JSONEq(t, `"update"`, string(update["type"]))
	for _, key := range []string{"old-commit", "new-commit", "merge-base", "force", "patch", "log"} {
		assert.Contains(t, update, key)
	}
	assert.NotContains(t, update, "commit")

	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(update["log"], &entries))
	require.Len(t, entries, 1)
	for _, key := range []string{"hash", "parents", "author", "author-date", "committer", "committer-date", "signed-by-key-id", "message"} {
		assert.Contains(t, entries[0], key)
	}
}

func TestUpdateNullEnrichment(t *testing.T) {
	change := Change{
		Type:      ChangeUpdate,
		Name:      "refs/heads/main",
		OldCommit: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		NewCommit: "cccccccccccccccccccccccccccccccccccccccc",
		Force:     true,
	}

	data, err := json.Marshal(change)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "update",
		"name": "refs/heads/main",
		"old-commit": "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		"new-commit": "cccccccccccccccccccccccccccccccccccccccc",
		"merge-base": null,
		"force": true,
		"patch": null,
		"log": null
	}`, string(data))
}

func TestMetadataNone(t *testing.T) {
	data, err := json.Marshal(Metadata{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"none"}`, string(data))

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.GitLab)
}

func TestNoSignatureWireFormat(t *testing.T) {
	sig := Signature{Status: StatusNoSignature, Nonce: Nonce{Type: NonceMissing}}

	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"certificate": "",
		"signer": "",
		"key": "",
		"status": "no-signature",
		"nonce": {"type": "missing"}
	}`, string(data))
}

func TestUnknownChangeType(t *testing.T) {
	var c Change
	require.Error(t, json.Unmarshal([]byte(`{"type":"rename","name":"refs/heads/x"}`), &c))

	_, err := json.Marshal(Change{Type: "rename"})
	require.Error(t, err)
}

func TestBuildIsDeterministic(t *testing.T) {
	in := BuildInput{
		DefaultBranch: "main",
		Config:        json.RawMessage(`{"a":1}`),
		Changes:       []Change{{Type: ChangeAdd, Name: "refs/heads/x", Commit: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}},
		PushOptions:   []string{"o1"},
		Signature:     Signature{Status: StatusNoSignature, Nonce: Nonce{Type: NonceMissing}},
	}

	first, err := json.Marshal(Build(in))
	require.NoError(t, err)
	second, err := json.Marshal(Build(in))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	req := Build(in)
	assert.Equal(t, Version, req.Version)
	assert.Equal(t, "main", req.DefaultBranch)
}
