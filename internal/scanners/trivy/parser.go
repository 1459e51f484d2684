package trivy

import (
	"fmt"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

type TrivyReport struct {
	Results []TrivyResult `json:"Results"`
}

type TrivyResult struct {
	Target          string               `json:"Target"`
	Class           string               `json:"Class"`
	Type            string               `json:"Type"`
	Vulnerabilities []TrivyVulnerability `json:"Vulnerabilities"`
}

type TrivyVulnerability struct {
	VulnerabilityID  string   `json:"VulnerabilityID"`
	PkgName          string   `json:"PkgName"`
	InstalledVersion string   `json:"InstalledVersion"`
	FixedVersion     string   `json:"FixedVersion"`
	Title            string   `json:"Title"`
	Description      string   `json:"Description"`
	Severity         string   `json:"Severity"`
	CweIDs           []string `json:"CweIDs"`
	PrimaryURL       string   `json:"PrimaryURL"`
	References       []string `json:"References"`
}

// ParseTrivyOutput flattens every result's vulnerabilities into findings
// located at the result target (the lockfile or manifest trivy read).
func ParseTrivyOutput(data []byte) ([]model.Finding, error) {
	var report TrivyReport
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil || empty {
		return nil, err
	}

	var findings []model.Finding
	for _, result := range report.Results {
		for _, v := range result.Vulnerabilities {
			id := v.VulnerabilityID
			if id == "" {
				id = "unknown"
			}
			native := v.Severity
			if native == "" {
				native = "MEDIUM"
			}

			title := id
			if v.Title != "" {
				title = fmt.Sprintf("%s: %s", id, v.Title)
			}
			description := v.Description
			if description == "" {
				description = v.Title
			}
			var cwe string
			if len(v.CweIDs) > 0 {
				cwe = v.CweIDs[0]
			}
			refs := v.References
			if refs == nil {
				refs = []string{}
			}

			metadata := map[string]any{
				"vulnerability_id":  id,
				"package":           v.PkgName,
				"installed_version": v.InstalledVersion,
				"fixed_version":     v.FixedVersion,
				"trivy_severity":    native,
				"references":        refs,
			}
			if v.PrimaryURL != "" {
				metadata["url"] = v.PrimaryURL
			}
			if result.Type != "" {
				metadata["ecosystem"] = result.Type
			}

			findings = append(findings, model.Finding{
				Tool:        ToolName,
				Title:       title,
				Severity:    severity.NormalizeOrDefault(ToolName, native),
				Category:    scanners.CategoryDependency,
				FilePath:    result.Target,
				CodeSnippet: fmt.Sprintf("Package: %s@%s", v.PkgName, v.InstalledVersion),
				Description: description,
				CWE:         cwe,
				Metadata:    metadata,
			})
		}
	}
	return findings, nil
}
