package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wbrijesh/refguard/internal/config"
	"github.com/wbrijesh/refguard/internal/hooks"
)

func main() {
	// Operator defaults are advisory; a broken file must not block pushes.
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "refguard: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	kind, err := hooks.KindFromPath(os.Args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "refguard: %v\n", err)
		os.Exit(1)
	}

	os.Exit(hooks.Run(hooks.Options{
		Kind:     kind,
		Args:     os.Args[1:],
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		RepoPath: ".",
		Defaults: cfg,
	}))
}
