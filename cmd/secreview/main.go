package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"secreview/internal/observability"
	"secreview/internal/orchestrator"
)

func main() {
	// SIGINT/SIGTERM cancel the scan; the orchestrator still removes its artifacts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code:
// 0 success, 1 setup or orchestration error, 2 fail-on threshold reached.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...orchestrator.Option) int {
	defer observability.Sync()

	root := newRootCmd(opts...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	var threshold *thresholdError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &threshold):
		fmt.Fprintf(stdout, "FAILURE: %v\n", threshold)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
