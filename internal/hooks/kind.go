// Package hooks runs the hook invocation pipeline: parse the ref changes,
// resolve the repository's hooks.json, match and enrich the changes, and
// turn the webhook verdict into the exit code git expects.
package hooks

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies which server-side hook is running.
type Kind string

const (
	PreReceive  Kind = "pre-receive"
	Update      Kind = "update"
	PostReceive Kind = "post-receive"
)

func (k Kind) String() string {
	return string(k)
}

// KindFromPath derives the hook kind from the path the binary was invoked
// as: the executable name itself, or the enclosing directory with a
// trailing ".d" trimmed (for hooks installed as pre-receive.d/refguard).
func KindFromPath(path string) (Kind, error) {
	if k, ok := kindByName(filepath.Base(path)); ok {
		return k, nil
	}

	parent := strings.TrimSuffix(filepath.Base(filepath.Dir(path)), ".d")
	if k, ok := kindByName(parent); ok {
		return k, nil
	}

	return "", fmt.Errorf("not installed under a known hook name: %s", path)
}

func kindByName(name string) (Kind, bool) {
	switch Kind(name) {
	case PreReceive, Update, PostReceive:
		return Kind(name), true
	default:
		return "", false
	}
}
