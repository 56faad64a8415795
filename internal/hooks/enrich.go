package hooks

import (
	"fmt"
	"log/slog"

	"github.com/wbrijesh/refguard/internal/git"
	"github.com/wbrijesh/refguard/internal/hookconfig"
	"github.com/wbrijesh/refguard/internal/payload"
	"github.com/wbrijesh/refguard/internal/refs"
)

// buildChange converts one parsed ref change into its wire form, applying
// the hook's include-patch/include-log enrichment to updates. On an
// enrichment failure the partially built change is returned alongside the
// error, so a permissive reject-on-error policy can still ship it.
func buildChange(reader *git.Reader, hook *hookconfig.Hook, change refs.Change, maxLogCommits int) (payload.Change, error) {
	switch change.Kind {
	case refs.Add:
		return payload.Change{Type: payload.ChangeAdd, Name: change.RefName, Commit: change.NewCommit}, nil
	case refs.Remove:
		return payload.Change{Type: payload.ChangeRemove, Name: change.RefName, Commit: change.OldCommit}, nil
	}

	out := payload.Change{
		Type:      payload.ChangeUpdate,
		Name:      change.RefName,
		OldCommit: change.OldCommit,
		NewCommit: change.NewCommit,
	}

	// The force flag falls out of the merge base: a fast-forward keeps the
	// old tip as the merge base. No merge base at all means unrelated
	// histories, which only a force push produces.
	mergeBase, found, err := reader.MergeBase(change.OldCommit, change.NewCommit)
	if err != nil {
		slog.Warn("merge base unavailable", "ref", change.RefName, "error", err)
		found = false
	}
	if found {
		out.MergeBase = &mergeBase
		out.Force = mergeBase != change.OldCommit
	} else {
		out.Force = true
	}

	if hook.IncludePatch {
		patch, err := reader.PatchBase64(change.OldCommit, change.NewCommit)
		if err != nil {
			return out, fmt.Errorf("patch for %s: %w", change.RefName, err)
		}
		out.Patch = &patch
	}

	if hook.IncludeLog {
		// On a force push the old tip is not an ancestor of the new one, so
		// the history walk anchors at the merge base instead.
		stop := change.OldCommit
		if out.Force {
			stop = ""
			if found {
				stop = mergeBase
			}
		}

		commits, err := reader.LogBetween(change.NewCommit, stop, maxLogCommits)
		if err != nil {
			return out, fmt.Errorf("log for %s: %w", change.RefName, err)
		}

		entries := make([]payload.LogEntry, 0, len(commits))
		for _, c := range commits {
			entries = append(entries, payload.LogEntryFromCommit(c))
		}
		out.Log = entries
	}

	return out, nil
}
