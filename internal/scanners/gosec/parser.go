package gosec

import (
	"fmt"
	"strconv"
	"strings"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

// Report is the subset of `gosec -fmt=json` output that is consumed.
type Report struct {
	Issues []Issue `json:"Issues"`
}

type Issue struct {
	Severity   string `json:"severity"`
	Confidence string `json:"confidence"`
	CWE        *CWE   `json:"cwe"`
	RuleID     string `json:"rule_id"`
	Details    string `json:"details"`
	File       string `json:"file"`
	Code       string `json:"code"`
	// Line is "12" or a range such as "12-14"; older releases emit a number.
	Line   any `json:"line"`
	Column any `json:"column"`
}

type CWE struct {
	ID  any    `json:"id"`
	URL string `json:"url"`
}

// ParseGosecOutput converts a gosec JSON report into findings.
func ParseGosecOutput(data []byte) ([]model.Finding, error) {
	var report Report
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil || empty {
		return nil, err
	}

	findings := make([]model.Finding, 0, len(report.Issues))
	for _, i := range report.Issues {
		start, end := parseLine(scanners.StringValue(i.Line))

		title := i.RuleID
		if i.Details != "" {
			title = fmt.Sprintf("%s: %s", i.RuleID, i.Details)
		}

		var cwe string
		metadata := map[string]any{
			"rule_id":        i.RuleID,
			"gosec_severity": i.Severity,
			"confidence":     i.Confidence,
		}
		if i.CWE != nil {
			cwe = scanners.StringValue(i.CWE.ID)
			if i.CWE.URL != "" {
				metadata["cwe_url"] = i.CWE.URL
			}
		}

		findings = append(findings, model.Finding{
			Tool:        ToolName,
			Title:       title,
			Severity:    severity.NormalizeOrDefault(ToolName, i.Severity),
			Category:    scanners.CategorySecurity,
			FilePath:    i.File,
			LineStart:   start,
			LineEnd:     end,
			CodeSnippet: i.Code,
			Description: i.Details,
			CWE:         cwe,
			Metadata:    metadata,
		})
	}
	return findings, nil
}

// parseLine reads "12" or "12-14". Unparseable input yields 0, 0.
func parseLine(s string) (start, end int) {
	from, to, isRange := strings.Cut(strings.TrimSpace(s), "-")
	start, err := strconv.Atoi(from)
	if err != nil {
		return 0, 0
	}
	end = start
	if isRange {
		if n, err := strconv.Atoi(to); err == nil && n >= start {
			end = n
		}
	}
	return start, end
}
