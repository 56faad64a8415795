// Package refs parses the ref updates git hands to a hook, either as
// "old-commit new-commit ref-name" lines on stdin (pre-receive,
// post-receive) or as three positional arguments (update).
package refs

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Kind classifies a ref change.
type Kind string

const (
	Add    Kind = "add"
	Remove Kind = "remove"
	Update Kind = "update"
)

// Change is one ref update as reported by git. OldCommit and NewCommit are
// always populated; Kind records whether the all-zero id made this an add
// or a remove.
type Change struct {
	Kind      Kind
	RefName   string
	OldCommit string
	NewCommit string
}

// ReadLines parses the stdin protocol. A malformed line fails the whole
// batch. Empty input yields an empty slice, which callers treat as "no
// changes". Updates where both ids are all zeros carry no information and
// are dropped.
func ReadLines(r io.Reader) ([]Change, error) {
	var changes []Change

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\n")
		if line == "" {
			continue
		}

		parts := strings.Split(line, " ")
		if len(parts) != 3 {
			return nil, fmt.Errorf("line %d: expected \"old new ref\", got %d fields", lineNo, len(parts))
		}

		change, ok, err := newChange(parts[0], parts[1], parts[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			changes = append(changes, change)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return changes, nil
}

// ReadArgs parses the update hook's positional arguments: ref name, old
// commit, new commit.
func ReadArgs(args []string) ([]Change, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("expected 3 arguments (ref, old, new), got %d", len(args))
	}

	change, ok, err := newChange(args[1], args[2], args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []Change{change}, nil
}

func newChange(oldCommit, newCommit, refName string) (Change, bool, error) {
	if err := checkCommitID(oldCommit); err != nil {
		return Change{}, false, fmt.Errorf("old commit: %w", err)
	}
	if err := checkCommitID(newCommit); err != nil {
		return Change{}, false, fmt.Errorf("new commit: %w", err)
	}
	if refName == "" {
		return Change{}, false, fmt.Errorf("empty ref name")
	}

	oldZero := allZeros(oldCommit)
	newZero := allZeros(newCommit)

	change := Change{RefName: refName, OldCommit: oldCommit, NewCommit: newCommit}
	switch {
	case oldZero && newZero:
		return Change{}, false, nil
	case oldZero:
		change.Kind = Add
	case newZero:
		change.Kind = Remove
	default:
		change.Kind = Update
	}
	return change, true, nil
}

func checkCommitID(id string) error {
	if len(id) != 40 && len(id) != 64 {
		return fmt.Errorf("bad length %d for %q", len(id), id)
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("non-hex character in %q", id)
		}
	}
	return nil
}

func allZeros(id string) bool {
	for _, c := range id {
		if c != '0' {
			return false
		}
	}
	return true
}
