// Package orchestrator drives one scan: detect the environment, run the
// applicable tools, fold their findings into one set and hand it off.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secreview/internal/aggregate"
	"secreview/internal/config"
	"secreview/internal/detect"
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

// ErrTargetNotFound is returned before any tool runs when the target path
// does not exist.
var ErrTargetNotFound = errors.New("target path not found")

// State names the phases of a scan.
type State int

const (
	StateInit State = iota
	StateDetectEnvironment
	StateRunAdapters
	StateDeduplicate
	StateReport
	StateCleanup
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDetectEnvironment:
		return "detect-environment"
	case StateRunAdapters:
		return "run-adapters"
	case StateDeduplicate:
		return "deduplicate"
	case StateReport:
		return "report"
	case StateCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Reporter receives the finished result.
type Reporter interface {
	Report(ctx context.Context, res *Result) error
}

// Result is everything one scan produced.
type Result struct {
	ScanID      string               `json:"scan_id"`
	Target      string               `json:"target"`
	ProjectName string               `json:"project_name"`
	StartedAt   time.Time            `json:"started_at"`
	Duration    time.Duration        `json:"duration"`
	Environment detect.Summary       `json:"environment"`
	ToolsRun    []string             `json:"tools_run"`
	Diagnostics []model.Diagnostic   `json:"diagnostics"`
	Findings    []model.Finding      `json:"findings"`
	Stats       aggregate.Statistics `json:"statistics"`
}

// HasSeverityAtLeast reports whether any finding is at least as severe as sev.
func (r *Result) HasSeverityAtLeast(sev model.Severity) bool {
	for _, f := range r.Findings {
		if f.Severity.Rank() >= sev.Rank() {
			return true
		}
	}
	return false
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the process runner.
func WithRunner(r depExec.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithFs replaces the filesystem used for target checks and detection.
func WithFs(fs afero.Fs) Option {
	return func(o *Orchestrator) { o.fs = fs }
}

// WithEntries replaces the adapter registry. Without it the registry is
// built from the detected environment on every run.
func WithEntries(entries []scanners.Entry) Option {
	return func(o *Orchestrator) { o.entries = entries }
}

// WithReporter sets the handoff target for finished results.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// Orchestrator runs scans. It holds no per-scan state and may be reused.
type Orchestrator struct {
	scan     config.ScanConfig
	tools    config.ToolsConfig
	logger   *zap.Logger
	runner   depExec.Runner
	fs       afero.Fs
	entries  []scanners.Entry
	reporter Reporter
}

// New creates an Orchestrator from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		scan:   cfg.Scan,
		tools:  cfg.Tools,
		logger: logger.Named("orchestrator"),
		runner: depExec.Default,
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// scanState carries the mutable state of one Run.
type scanState struct {
	target      string
	artifactDir string
	dedup       *aggregate.Deduplicator

	mu          sync.Mutex
	diagnostics []model.Diagnostic
	ran         []bool
}

func (s *scanState) diagnose(d model.Diagnostic) {
	s.mu.Lock()
	s.diagnostics = append(s.diagnostics, d)
	s.mu.Unlock()
}

// Run performs one scan of target. Tool failures are recorded as
// diagnostics; only a missing target, a cancelled context, an artifact
// directory failure or a reporter failure make Run return an error.
func (o *Orchestrator) Run(ctx context.Context, target string) (res *Result, err error) {
	started := time.Now()
	o.transition(StateInit)

	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("resolve target: %w", err)
	}
	if _, err := o.fs.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, abs)
	}

	artifactDir, cleanup, err := o.artifactDir()
	if err != nil {
		return nil, err
	}
	defer func() {
		o.transition(StateCleanup)
		cleanup()
	}()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Scan aborted by panic", zap.Any("panic", r), zap.Stack("stack"))
			res, err = nil, fmt.Errorf("scan aborted: %v", r)
		}
	}()

	o.transition(StateDetectEnvironment)
	env, err := detect.New(o.fs, abs, o.scan.MaxDepth).Summary()
	if err != nil {
		return nil, fmt.Errorf("detect environment: %w", err)
	}
	o.logger.Info("Environment detected",
		zap.String("primary_language", env.PrimaryLanguage),
		zap.Any("languages", env.Languages),
		zap.Strings("frameworks", env.Frameworks),
		zap.Strings("manifests", env.Manifests))

	entries := o.entries
	if entries == nil {
		entries = DefaultEntries(o.tools, env)
	}
	selected := scanners.Select(entries, env, o.tools.Disabled)
	names := make([]string, len(selected))
	for i, s := range selected {
		names[i] = s.Name()
	}
	o.logger.Info("Tools selected", zap.Strings("tools", names))

	o.transition(StateRunAdapters)
	state := &scanState{
		target:      abs,
		artifactDir: artifactDir,
		dedup:       aggregate.New(),
		ran:         make([]bool, len(selected)),
	}
	if err := o.runAll(ctx, selected, state); err != nil {
		return nil, err
	}

	o.transition(StateDeduplicate)
	var toolsRun []string
	for i, ran := range state.ran {
		if ran {
			toolsRun = append(toolsRun, names[i])
		}
	}
	res = &Result{
		ScanID:      uuid.New().String(),
		Target:      abs,
		ProjectName: o.projectName(abs),
		StartedAt:   started,
		Environment: env,
		ToolsRun:    toolsRun,
		Diagnostics: o.sortedDiagnostics(state, names),
		Findings:    state.dedup.Unique(),
	}
	res.Stats = aggregate.ComputeStatistics(res.Findings)
	res.Duration = time.Since(started)
	o.logger.Info("Scan complete",
		zap.String("scan_id", res.ScanID),
		zap.Int("findings", res.Stats.Total),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("duration", res.Duration))

	if o.reporter != nil {
		o.transition(StateReport)
		if err := o.reporter.Report(ctx, res); err != nil {
			return res, fmt.Errorf("report: %w", err)
		}
	}
	return res, nil
}

func (o *Orchestrator) transition(s State) {
	o.logger.Debug("Scan state", zap.Stringer("state", s))
}

// artifactDir returns where tool outputs are written and how to dispose of
// them. Kept artifacts go to <output_dir>/raw; otherwise a temp dir is used
// and removed on every exit path.
func (o *Orchestrator) artifactDir() (string, func(), error) {
	if o.scan.KeepArtifacts {
		// Absolute, since some tools run from inside the target.
		dir, err := filepath.Abs(filepath.Join(o.scan.OutputDir, "raw"))
		if err != nil {
			return "", nil, fmt.Errorf("resolve artifact dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, fmt.Errorf("create artifact dir: %w", err)
		}
		return dir, func() {
			o.logger.Info("Keeping tool artifacts", zap.String("dir", dir))
		}, nil
	}

	dir, err := os.MkdirTemp("", "secreview-*")
	if err != nil {
		return "", nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Warn("Failed to remove artifact dir", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

// runAll runs the selected adapters in order, or up to scan.concurrency at
// a time. It returns only when ctx is cancelled or an adapter panics.
func (o *Orchestrator) runAll(ctx context.Context, selected []scanners.Scanner, state *scanState) error {
	if o.scan.Concurrency <= 1 {
		for i, s := range selected {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scan interrupted: %w", err)
			}
			if err := o.runAdapter(ctx, i, s, state); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.scan.Concurrency)
	for i, s := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("scan interrupted: %w", err)
			}
			return o.runAdapter(gctx, i, s, state)
		})
	}
	return g.Wait()
}

// runAdapter runs one tool and feeds its findings to the deduplicator.
// Tool problems become diagnostics; the returned error is reserved for
// cancellation and panics.
func (o *Orchestrator) runAdapter(ctx context.Context, idx int, s scanners.Scanner, state *scanState) (err error) {
	name := s.Name()
	log := o.logger.With(zap.String("tool", name))
	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool adapter panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("tool %s: panic: %v", name, r)
		}
	}()

	diagnose := func(stage, msg string) {
		log.Warn("Tool contributed no findings", zap.String("stage", stage), zap.String("reason", msg))
		state.diagnose(model.Diagnostic{Tool: name, Stage: stage, Message: msg})
	}

	if !s.IsAvailable() {
		diagnose(model.StageUnavailable, "executable not found on PATH")
		return nil
	}

	output := filepath.Join(state.artifactDir, name+".out")
	// A kept artifact dir is reused across scans; a leftover file must not
	// stand in for output this run never produced.
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		diagnose(model.StageInvocation, fmt.Sprintf("remove stale output: %v", err))
		return nil
	}
	cmd := s.BuildCommand(state.target, output)

	runCtx := ctx
	if o.scan.ToolTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.scan.ToolTimeout)
		defer cancel()
	}

	log.Info("Running tool", zap.String("command", cmd.String()))
	state.markRan(idx)
	res, runErr := o.runner.Run(runCtx, cmd.Name, cmd.Args, cmd.Dir)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scan interrupted: %w", err)
	}
	switch {
	case res.TimedOut():
		diagnose(model.StageTimeout, fmt.Sprintf("no result within %s", o.scan.ToolTimeout))
		return nil
	case res.NotFound():
		diagnose(model.StageUnavailable, "executable not found")
		return nil
	}
	log.Debug("Tool exited", zap.Int("exit_code", res.ExitCode), zap.Duration("duration", res.Duration))

	if cmd.CaptureStdout && strings.TrimSpace(res.Stdout) != "" {
		if err := os.WriteFile(output, []byte(res.Stdout), 0o644); err != nil {
			diagnose(model.StageInvocation, fmt.Sprintf("write captured output: %v", err))
			return nil
		}
	}

	if _, err := os.Stat(output); err != nil {
		msg := fmt.Sprintf("no output artifact (exit code %d)", res.ExitCode)
		if runErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, runErr)
		}
		if tail := lastLine(res.Stderr); tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, tail)
		}
		diagnose(model.StageMissingOutput, msg)
		return nil
	}

	findings, err := s.Parse(output)
	if err != nil {
		diagnose(model.StageParse, err.Error())
		return nil
	}
	for i := range findings {
		findings[i].FilePath = relativeTo(state.target, findings[i].FilePath)
	}
	added := state.dedup.AddAll(findings)
	log.Info("Tool finished", zap.Int("findings", len(findings)), zap.Int("new", added))
	return nil
}

func (s *scanState) markRan(idx int) {
	s.mu.Lock()
	s.ran[idx] = true
	s.mu.Unlock()
}

// sortedDiagnostics orders diagnostics by tool position so parallel runs
// report them the same way sequential runs do.
func (o *Orchestrator) sortedDiagnostics(state *scanState, names []string) []model.Diagnostic {
	out := make([]model.Diagnostic, 0, len(state.diagnostics))
	for _, name := range names {
		for _, d := range state.diagnostics {
			if d.Tool == name {
				out = append(out, d)
			}
		}
	}
	return out
}

func (o *Orchestrator) projectName(abs string) string {
	if o.scan.ProjectName != "" {
		return o.scan.ProjectName
	}
	return filepath.Base(abs)
}

// relativeTo rewrites absolute paths inside root as slash-separated paths
// relative to it, so tools invoked with an absolute target fingerprint the
// same as tools that report relative paths.
func relativeTo(root, p string) string {
	if p == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
