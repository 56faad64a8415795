package payload

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// PushOptions collects the push options git exports through
// GIT_PUSH_OPTION_COUNT and GIT_PUSH_OPTION_<i>.
func PushOptions() []string {
	count, err := strconv.Atoi(os.Getenv("GIT_PUSH_OPTION_COUNT"))
	if err != nil || count <= 0 {
		return nil
	}

	options := make([]string, 0, count)
	for i := 0; i < count; i++ {
		v, ok := os.LookupEnv(fmt.Sprintf("GIT_PUSH_OPTION_%d", i))
		if !ok {
			break
		}
		options = append(options, v)
	}
	return options
}

// BlobReader reads a blob's content by hash. Satisfied by *git.Reader; the
// push certificate is stored as a blob and referenced from the environment.
type BlobReader interface {
	BlobContent(hash string) (string, error)
}

// SignatureFromEnv builds the push certificate description from the
// GIT_PUSH_CERT_* environment. Absence of a certificate is the ordinary
// case and yields a no-signature value, never an error.
func SignatureFromEnv(blobs BlobReader) Signature {
	certBlob := os.Getenv("GIT_PUSH_CERT")
	if certBlob == "" {
		return Signature{
			Status: StatusNoSignature,
			Nonce:  Nonce{Type: NonceMissing},
		}
	}

	certificate := ""
	if blobs != nil {
		content, err := blobs.BlobContent(certBlob)
		if err != nil {
			slog.Warn("push certificate blob unreadable", "blob", certBlob, "error", err)
		} else {
			certificate = content
		}
	}

	return Signature{
		Certificate: certificate,
		Signer:      os.Getenv("GIT_PUSH_CERT_SIGNER"),
		Key:         os.Getenv("GIT_PUSH_CERT_KEY"),
		Status:      signatureStatus(os.Getenv("GIT_PUSH_CERT_STATUS")),
		Nonce:       nonceFromEnv(),
	}
}

func signatureStatus(letter string) string {
	switch letter {
	case "G":
		return StatusGood
	case "B":
		return StatusBad
	case "U":
		return StatusUnknownValidity
	case "X":
		return StatusExpired
	case "Y":
		return StatusExpiredKey
	case "R":
		return StatusRevokedKey
	case "E":
		return StatusCannotCheck
	case "N":
		return StatusNoSignature
	default:
		return StatusCannotCheck
	}
}

func nonceFromEnv() Nonce {
	nonce := os.Getenv("GIT_PUSH_CERT_NONCE")
	switch os.Getenv("GIT_PUSH_CERT_NONCE_STATUS") {
	case "UNSOLICITED":
		return Nonce{Type: NonceUnsolicited, Nonce: nonce}
	case "BAD":
		return Nonce{Type: NonceBad, Nonce: nonce}
	case "OK":
		return Nonce{Type: NonceOK, Nonce: nonce}
	case "SLOP":
		slop, _ := strconv.ParseUint(os.Getenv("GIT_PUSH_CERT_NONCE_SLOP"), 10, 32)
		return Nonce{Type: NonceSlop, Nonce: nonce, StaleSeconds: uint32(slop)}
	default:
		return Nonce{Type: NonceMissing}
	}
}

// MetadataFromEnv builds the host platform variant from the GL_* hook
// environment. Unknown or partial environments collapse to the none
// variant.
func MetadataFromEnv() Metadata {
	id, ok := parseGitLabID(os.Getenv("GL_ID"))
	if !ok {
		return Metadata{}
	}
	projectPath := os.Getenv("GL_PROJECT_PATH")
	if projectPath == "" {
		return Metadata{}
	}
	protocol := os.Getenv("GL_PROTOCOL")
	switch protocol {
	case "http", "ssh", "web":
	default:
		return Metadata{}
	}
	repo, ok := parseGitLabRepository(os.Getenv("GL_REPOSITORY"))
	if !ok {
		return Metadata{}
	}
	username := os.Getenv("GL_USERNAME")
	if username == "" {
		return Metadata{}
	}

	return Metadata{GitLab: &GitLabMetadata{
		ID:          id,
		ProjectPath: projectPath,
		Protocol:    protocol,
		Repository:  repo,
		Username:    username,
	}}
}

func parseGitLabID(s string) (GitLabID, bool) {
	for _, kind := range []string{"user", "key"} {
		if rest, ok := strings.CutPrefix(s, kind+"-"); ok {
			id, err := strconv.ParseUint(rest, 10, 64)
			if err != nil {
				return GitLabID{}, false
			}
			return GitLabID{Type: kind, ID: id}, true
		}
	}
	return GitLabID{}, false
}

func parseGitLabRepository(s string) (GitLabRepository, bool) {
	rest, ok := strings.CutPrefix(s, "project-")
	if !ok {
		return GitLabRepository{}, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return GitLabRepository{}, false
	}
	return GitLabRepository{Type: "project", ID: id}, true
}
