package semgrep

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

// Report is the subset of `semgrep --json` output that is consumed.
type Report struct {
	Results []Result `json:"results"`
}

type Result struct {
	CheckID string   `json:"check_id"`
	Path    string   `json:"path"`
	Start   Position `json:"start"`
	End     Position `json:"end"`
	Extra   Extra    `json:"extra"`
}

type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type Extra struct {
	Message  string         `json:"message"`
	Severity string         `json:"severity"`
	Lines    string         `json:"lines"`
	Metadata map[string]any `json:"metadata"`
}

var titler = cases.Title(language.Und)

// RuleTitle turns a dotted rule id into a readable label:
// "python.lang.security.audit.eval" becomes "Python Lang Security Audit Eval".
func RuleTitle(checkID string) string {
	return titler.String(strings.ReplaceAll(checkID, ".", " "))
}

// ParseSemgrepOutput converts a semgrep JSON report into findings.
func ParseSemgrepOutput(data []byte) ([]model.Finding, error) {
	var report Report
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil || empty {
		return nil, err
	}

	findings := make([]model.Finding, 0, len(report.Results))
	for _, r := range report.Results {
		checkID := r.CheckID
		if checkID == "" {
			checkID = "unknown"
		}
		native := r.Extra.Severity
		if native == "" {
			native = "INFO"
		}

		category := scanners.CategorySecurity
		if c, ok := r.Extra.Metadata["category"].(string); ok && c != "" {
			category = c
		}

		metadata := map[string]any{
			"check_id":         checkID,
			"semgrep_severity": native,
		}
		for k, v := range r.Extra.Metadata {
			metadata[k] = v
		}

		findings = append(findings, model.Finding{
			Tool:        ToolName,
			Title:       RuleTitle(checkID),
			Severity:    severity.NormalizeOrDefault(ToolName, native),
			Category:    category,
			FilePath:    r.Path,
			LineStart:   r.Start.Line,
			LineEnd:     max(r.End.Line, r.Start.Line),
			CodeSnippet: r.Extra.Lines,
			Description: r.Extra.Message,
			CWE:         firstCWE(r.Extra.Metadata["cwe"]),
			Metadata:    metadata,
		})
	}
	return findings, nil
}

// firstCWE accepts either a single CWE string or a list of them.
func firstCWE(v any) string {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			return scanners.StringValue(t[0])
		}
		return ""
	default:
		return scanners.StringValue(t)
	}
}
