package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"secreview/internal/model"
	"secreview/internal/orchestrator"
	"secreview/internal/report"
)

// thresholdError reports that the scan reached the fail-on severity.
type thresholdError struct {
	severity model.Severity
}

func (e *thresholdError) Error() string {
	return fmt.Sprintf("found severity level %s or higher", e.severity)
}

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a project directory with every applicable tool",
		Long: `Detects the languages, frameworks and dependency manifests of the project,
runs each applicable tool, merges duplicate findings across tools and writes
report.json and summary.md to the output directory.

A tool that is missing or fails is recorded as a diagnostic and does not
fail the scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return runScan(cmd.Context(), a, target, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "report output directory (default \"security-reports\")")
	f.StringP("project", "p", "", "project name shown in the report (default: target directory name)")
	f.IntP("depth", "d", 0, "maximum directory depth for environment detection (default 3)")
	f.Duration("timeout", 0, "per-tool timeout, 0 disables it (default 10m)")
	f.IntP("concurrency", "j", 0, "number of tools run at once (default 1)")
	f.String("fail-on", "", "exit with status 2 when a finding at or above this severity exists (low, medium, high, critical)")
	f.StringSlice("disable", nil, "tools to skip, e.g. --disable trivy,bandit")
	f.String("semgrep-config", "", "semgrep --config value (default \"auto\")")
	f.Bool("keep-artifacts", false, "keep raw tool output under <output>/raw")

	return cmd
}

func runScan(ctx context.Context, a *app, target string, out io.Writer) error {
	cfg := a.cfg
	logger := a.logger

	writer := report.Writer{OutDir: cfg.Scan.OutputDir, FailOn: cfg.Scan.FailOn}
	opts := append([]orchestrator.Option{orchestrator.WithReporter(writer)}, a.orchOpts...)
	orch := orchestrator.New(cfg, logger, opts...)

	logger.Info("Starting scan",
		zap.String("target", target),
		zap.Int("max_depth", cfg.Scan.MaxDepth),
		zap.Int("concurrency", cfg.Scan.Concurrency),
		zap.Duration("tool_timeout", cfg.Scan.ToolTimeout))

	res, err := orch.Run(ctx, target)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Scan aborted by signal")
			return fmt.Errorf("scan aborted: %w", err)
		}
		logger.Error("Scan failed", zap.Error(err))
		return err
	}

	printSummary(out, res, cfg.Scan.OutputDir)

	if sev, ok := cfg.Scan.FailOnSeverity(); ok && res.HasSeverityAtLeast(sev) {
		return &thresholdError{severity: sev}
	}
	return nil
}

func printSummary(out io.Writer, res *orchestrator.Result, outDir string) {
	fmt.Fprintln(out, "\n=== secreview ===")
	fmt.Fprintf(out, "Target:     %s\n", res.Target)
	fmt.Fprintf(out, "Scan ID:    %s\n", res.ScanID)
	if res.Environment.PrimaryLanguage != "" {
		fmt.Fprintf(out, "Language:   %s\n", res.Environment.PrimaryLanguage)
	}
	tools := "none"
	if len(res.ToolsRun) > 0 {
		tools = strings.Join(res.ToolsRun, ", ")
	}
	fmt.Fprintf(out, "Tools:      %s\n", tools)

	counts := make([]string, 0, len(model.Severities))
	for _, sev := range model.Severities {
		counts = append(counts, fmt.Sprintf("%s %d", sev, res.Stats.BySeverity[sev]))
	}
	fmt.Fprintf(out, "Findings:   %d (%s)\n", res.Stats.Total, strings.Join(counts, ", "))

	if len(res.Diagnostics) > 0 {
		fmt.Fprintf(out, "\n[Diagnostics]\n")
		for _, d := range res.Diagnostics {
			fmt.Fprintf(out, " - [%s] %s: %s\n", d.Tool, d.Stage, d.Message)
		}
	}
	fmt.Fprintf(out, "\nReports saved to %s/\n", outDir)
}
