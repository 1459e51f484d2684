package bandit

import (
	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

// Report is the subset of `bandit -f json` output that is consumed.
type Report struct {
	Results []Issue `json:"results"`
}

type Issue struct {
	TestID          string    `json:"test_id"`
	TestName        string    `json:"test_name"`
	IssueText       string    `json:"issue_text"`
	IssueSeverity   string    `json:"issue_severity"`
	IssueConfidence string    `json:"issue_confidence"`
	IssueCWE        *IssueCWE `json:"issue_cwe"`
	Filename        string    `json:"filename"`
	LineNumber      int       `json:"line_number"`
	LineRange       []int     `json:"line_range"`
	Code            string    `json:"code"`
	MoreInfo        string    `json:"more_info"`
}

type IssueCWE struct {
	ID   any    `json:"id"`
	Link string `json:"link"`
}

// ParseBanditOutput converts a bandit JSON report into findings.
func ParseBanditOutput(data []byte) ([]model.Finding, error) {
	var report Report
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil || empty {
		return nil, err
	}

	findings := make([]model.Finding, 0, len(report.Results))
	for _, r := range report.Results {
		testID := r.TestID
		if testID == "" {
			testID = "unknown"
		}
		title := r.TestName
		if title == "" {
			title = testID
		}
		native := r.IssueSeverity
		if native == "" {
			native = "MEDIUM"
		}

		// line_range spans multi-line statements; it never ends before line_number.
		lineEnd := r.LineNumber
		if n := len(r.LineRange); n > 0 && r.LineRange[n-1] > lineEnd {
			lineEnd = r.LineRange[n-1]
		}

		var cwe string
		if r.IssueCWE != nil {
			cwe = scanners.StringValue(r.IssueCWE.ID)
		}

		metadata := map[string]any{
			"test_id":         testID,
			"bandit_severity": native,
			"confidence":      r.IssueConfidence,
		}
		if r.MoreInfo != "" {
			metadata["more_info"] = r.MoreInfo
		}

		findings = append(findings, model.Finding{
			Tool:        ToolName,
			Title:       title,
			Severity:    severity.NormalizeOrDefault(ToolName, native),
			Category:    scanners.CategorySecurity,
			FilePath:    r.Filename,
			LineStart:   r.LineNumber,
			LineEnd:     lineEnd,
			CodeSnippet: r.Code,
			Description: r.IssueText,
			CWE:         cwe,
			Metadata:    metadata,
		})
	}
	return findings, nil
}
