package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"secreview/internal/detect"
	"secreview/internal/model"
	"secreview/internal/orchestrator"
)

const (
	JSONFile     = "report.json"
	MarkdownFile = "summary.md"

	maxFindings = 30
	maxFiles    = 10
)

type Meta struct {
	ScanID      string             `json:"scan_id"`
	ProjectName string             `json:"project_name"`
	ScannedPath string             `json:"scanned_path"`
	Timestamp   string             `json:"timestamp"`
	Duration    string             `json:"duration"`
	FailOn      string             `json:"fail_on,omitempty"`
	Environment detect.Summary     `json:"environment"`
	ToolsRun    []string           `json:"tools_run"`
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// Summary is the statistics block with severity keys rendered as names.
type Summary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCategory map[string]int `json:"by_category"`
	ByFile     map[string]int `json:"by_file"`
	ByTool     map[string]int `json:"by_tool"`
}

type Report struct {
	Meta     Meta            `json:"meta"`
	Summary  Summary         `json:"summary"`
	Findings []model.Finding `json:"findings"`
}

// Build converts a scan result into its report form.
func Build(res *orchestrator.Result, failOn string) Report {
	bySeverity := make(map[string]int, len(model.Severities))
	for _, sev := range model.Severities {
		bySeverity[sev.String()] = res.Stats.BySeverity[sev]
	}

	findings := res.Findings
	if findings == nil {
		findings = []model.Finding{}
	}
	diagnostics := res.Diagnostics
	if diagnostics == nil {
		diagnostics = []model.Diagnostic{}
	}

	return Report{
		Meta: Meta{
			ScanID:      res.ScanID,
			ProjectName: res.ProjectName,
			ScannedPath: res.Target,
			Timestamp:   res.StartedAt.UTC().Format(time.RFC3339),
			Duration:    res.Duration.Round(time.Millisecond).String(),
			FailOn:      failOn,
			Environment: res.Environment,
			ToolsRun:    res.ToolsRun,
			Diagnostics: diagnostics,
		},
		Summary: Summary{
			Total:      res.Stats.Total,
			BySeverity: bySeverity,
			ByCategory: res.Stats.ByCategory,
			ByFile:     res.Stats.ByFile,
			ByTool:     res.Stats.ByTool,
		},
		Findings: findings,
	}
}

// Writer is the orchestrator's report handoff: it writes both files into OutDir.
type Writer struct {
	OutDir string
	FailOn string
}

var _ orchestrator.Reporter = Writer{}

func (w Writer) Report(_ context.Context, res *orchestrator.Result) error {
	return Generate(w.OutDir, Build(res, w.FailOn))
}

func Generate(outDir string, rep Report) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, JSONFile), jsonBytes, 0644); err != nil {
		return err
	}

	md := generateMarkdown(rep)
	if err := os.WriteFile(filepath.Join(outDir, MarkdownFile), []byte(md), 0644); err != nil {
		return err
	}

	return nil
}

func generateMarkdown(rep Report) string {
	var sb strings.Builder
	meta := rep.Meta

	fmt.Fprintf(&sb, "# Security Review: %s\n\n", meta.ProjectName)
	fmt.Fprintf(&sb, "**Target:** `%s`\n", meta.ScannedPath)
	fmt.Fprintf(&sb, "**Scan ID:** %s\n", meta.ScanID)
	fmt.Fprintf(&sb, "**Timestamp:** %s (%s)\n", meta.Timestamp, meta.Duration)
	if meta.Environment.PrimaryLanguage != "" {
		fmt.Fprintf(&sb, "**Primary Language:** %s\n", meta.Environment.PrimaryLanguage)
	}
	if len(meta.Environment.Frameworks) > 0 {
		fmt.Fprintf(&sb, "**Frameworks:** %s\n", strings.Join(meta.Environment.Frameworks, ", "))
	}
	if len(meta.ToolsRun) > 0 {
		fmt.Fprintf(&sb, "**Tools:** %s\n", strings.Join(meta.ToolsRun, ", "))
	}
	if meta.FailOn != "" {
		fmt.Fprintf(&sb, "**Fail On:** %s\n", meta.FailOn)
	}
	sb.WriteString("\n")

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Severity | Count |\n")
	sb.WriteString("| :--- | :--- |\n")
	for _, sev := range model.Severities {
		fmt.Fprintf(&sb, "| %s | %d |\n", sev, rep.Summary.BySeverity[sev.String()])
	}
	fmt.Fprintf(&sb, "| **Total** | %d |\n\n", rep.Summary.Total)

	if len(rep.Summary.ByCategory) > 0 {
		sb.WriteString("## By Category\n\n")
		sb.WriteString("| Category | Count |\n")
		sb.WriteString("| :--- | :--- |\n")
		for _, c := range sortedByCount(rep.Summary.ByCategory, -1) {
			fmt.Fprintf(&sb, "| %s | %d |\n", c, rep.Summary.ByCategory[c])
		}
		sb.WriteString("\n")
	}

	if len(rep.Summary.ByFile) > 0 {
		sb.WriteString("## Top Files\n\n")
		sb.WriteString("| File | Findings |\n")
		sb.WriteString("| :--- | :--- |\n")
		for _, f := range sortedByCount(rep.Summary.ByFile, maxFiles) {
			fmt.Fprintf(&sb, "| `%s` | %d |\n", f, rep.Summary.ByFile[f])
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Top Findings\n\n")
	if len(rep.Findings) == 0 {
		sb.WriteString("_No findings._\n")
	} else {
		sb.WriteString("| Sev | Title | Category | Location | CWE | Tools |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")

		limit := maxFindings
		if len(rep.Findings) < limit {
			limit = len(rep.Findings)
		}

		for _, f := range rep.Findings[:limit] {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s |\n",
				f.Severity, cell(f.Title), f.Category, location(f), f.CWE, f.Tool)
		}
		if len(rep.Findings) > maxFindings {
			fmt.Fprintf(&sb, "\n*...and %d more findings inside %s*\n", len(rep.Findings)-maxFindings, JSONFile)
		}
	}

	if len(meta.Diagnostics) > 0 {
		fmt.Fprintf(&sb, "\n## ⚠️ Tool Diagnostics (%d)\n\n", len(meta.Diagnostics))
		fmt.Fprintf(&sb, "> [!WARNING]\n")
		fmt.Fprintf(&sb, "> The following tools did not contribute findings. Coverage for their area may be incomplete.\n\n")

		fmt.Fprintf(&sb, "| Tool | Stage | Message |\n")
		fmt.Fprintf(&sb, "|---|---|---|\n")
		for _, d := range meta.Diagnostics {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", d.Tool, d.Stage, cell(d.Message))
		}
	}

	return sb.String()
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func location(f model.Finding) string {
	if f.LineStart <= 0 {
		return fmt.Sprintf("`%s`", f.FilePath)
	}
	if f.LineEnd > f.LineStart {
		return fmt.Sprintf("`%s:%d-%d`", f.FilePath, f.LineStart, f.LineEnd)
	}
	return fmt.Sprintf("`%s:%d`", f.FilePath, f.LineStart)
}

// sortedByCount returns the keys of counts, highest count first, ties by
// name. n < 0 means no limit.
func sortedByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
