package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/wbrijesh/refguard/internal/config"
	"github.com/wbrijesh/refguard/internal/git"
	"github.com/wbrijesh/refguard/internal/hookconfig"
	"github.com/wbrijesh/refguard/internal/payload"
	"github.com/wbrijesh/refguard/internal/refs"
	"github.com/wbrijesh/refguard/internal/webhook"
)

// Options wires one invocation to its process environment. Production use
// passes os.Stdin/os.Stdout/os.Stderr and RepoPath "." (git runs hooks with
// the bare repository as the working directory).
type Options struct {
	Kind     Kind
	Args     []string // positional arguments after argv[0] (update hook)
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	RepoPath string
	Defaults *config.Config
}

// Run executes the pipeline for one hook invocation and returns the
// process exit code. Missing or invalid configuration accepts silently:
// hooks are opt-in, and a broken hooks.json must not block every push.
func Run(opts Options) int {
	defaults := opts.Defaults
	if defaults == nil {
		defaults = config.DefaultConfig()
	}

	changes, err := readChanges(opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "refguard: %v\n", err)
		return 1
	}
	if len(changes) == 0 {
		return 0
	}

	reader, err := git.Open(opts.RepoPath)
	if err != nil {
		slog.Debug("repository not readable, accepting", "error", err)
		return 0
	}

	defaultBranch, err := reader.DefaultBranch()
	if err != nil {
		slog.Debug("no default branch, accepting", "error", err)
		return 0
	}

	data, err := reader.FileAtHead(hookconfig.FileName)
	if err != nil {
		slog.Debug("no hooks.json, accepting", "error", err)
		return 0
	}

	cfg, err := hookconfig.Decode(data)
	if err != nil {
		// Invalid configuration is treated the same as no configuration.
		slog.Warn("invalid hooks.json, accepting", "error", err)
		return 0
	}

	hook := cfg.Select(opts.Kind.String())
	if hook == nil {
		slog.Debug("no hook section, accepting", "kind", opts.Kind)
		return 0
	}

	var matched []refs.Change
	for _, change := range changes {
		if hook.Matches(change.RefName) {
			matched = append(matched, change)
		}
	}
	if len(matched) == 0 {
		slog.Debug("no ref matched a selector, accepting", "kind", opts.Kind)
		return 0
	}

	pushOptions := payload.PushOptions()
	if bypass := cfg.TriggeredBypass(hook, pushOptions); bypass != nil {
		printLines(opts.Stdout, bypass.Messages)
		slog.Info("hook bypassed", "kind", opts.Kind, "push_option", bypass.PushOption)
		return 0
	}

	printLines(opts.Stdout, hook.GreetingMessages)

	wireChanges := make([]payload.Change, 0, len(matched))
	for _, change := range matched {
		wireChange, err := buildChange(reader, hook, change, defaults.MaxLogCommits)
		if err != nil {
			if hook.RejectOnError {
				fmt.Fprintf(opts.Stderr, "refguard: %v\n", err)
				return 1
			}
			slog.Warn("enrichment failed, sending change as-is", "error", err)
		}
		wireChanges = append(wireChanges, wireChange)
	}

	request := payload.Build(payload.BuildInput{
		DefaultBranch: defaultBranch,
		Config:        hook.Config,
		Changes:       wireChanges,
		PushOptions:   pushOptions,
		Signature:     payload.SignatureFromEnv(reader),
		Metadata:      payload.MetadataFromEnv(),
	})

	body, err := json.Marshal(request)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "refguard: encode request: %v\n", err)
		return 1
	}

	result, err := webhook.Deliver(webhook.Options{
		URL:            hook.URL,
		ConnectTimeout: hook.ConnectTimeoutDuration(),
		RequestTimeout: hook.RequestTimeoutDuration(),
		MaxRedirects:   defaults.MaxRedirects,
	}, body)
	if err != nil {
		if hook.RejectOnError {
			fmt.Fprintf(opts.Stderr, "refguard: %v\n", err)
			return 1
		}
		slog.Warn("webhook unreachable, accepting", "error", err)
		return 0
	}

	if result.Accepted {
		printLines(opts.Stdout, result.Messages)
		return 0
	}
	printLines(opts.Stderr, result.Messages)
	return 1
}

func readChanges(opts Options) ([]refs.Change, error) {
	if opts.Kind == Update {
		return refs.ReadArgs(opts.Args)
	}
	return refs.ReadLines(opts.Stdin)
}

func printLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
