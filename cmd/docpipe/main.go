package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docpipe/internal/runner"
)

// Exit codes: 0 success, 1 failure, 130 interrupted with progress saved.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, runner.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "interrupted; progress saved, rerun to resume")
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
