package bun

import (
	"fmt"
	"sort"
	"strings"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

// ManifestFile is the location recorded on bun findings. It matches npm's so
// that the same advisory reported by both auditors merges into one entry.
const ManifestFile = "package.json"

type BunAdvisory struct {
	ID                 any      `json:"id"` // int or string
	URL                string   `json:"url"`
	Title              string   `json:"title"`
	Severity           string   `json:"severity"`
	VulnerableVersions string   `json:"vulnerable_versions"`
	CWE                []string `json:"cwe"`
}

// ParseBunOutput parses `bun audit --json`, a map of package name to advisories.
func ParseBunOutput(data []byte) ([]model.Finding, error) {
	var report map[string][]BunAdvisory
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil {
		if strings.Contains(string(data), "No vulnerabilities found") {
			return nil, nil
		}
		return nil, err
	}
	if empty {
		return nil, nil
	}

	pkgs := make([]string, 0, len(report))
	for name := range report {
		pkgs = append(pkgs, name)
	}
	sort.Strings(pkgs)

	var results []model.Finding
	for _, pkgName := range pkgs {
		for _, adv := range report[pkgName] {
			title := pkgName
			if adv.Title != "" {
				title = fmt.Sprintf("%s - %s", pkgName, adv.Title)
			}
			var cwe string
			if len(adv.CWE) > 0 {
				cwe = adv.CWE[0]
			}

			results = append(results, model.Finding{
				Tool:        ToolName,
				Title:       title,
				Severity:    severity.NormalizeOrDefault(ToolName, adv.Severity),
				Category:    scanners.CategoryDependency,
				FilePath:    ManifestFile,
				CodeSnippet: "Package: " + pkgName,
				Description: adv.Title,
				CWE:         cwe,
				Metadata: map[string]any{
					"package":             pkgName,
					"advisory_id":         advisoryID(adv),
					"bun_severity":        adv.Severity,
					"url":                 adv.URL,
					"vulnerable_versions": adv.VulnerableVersions,
				},
			})
		}
	}
	return results, nil
}

// advisoryID prefers the GHSA identifier at the end of the advisory URL over
// bun's numeric id.
func advisoryID(adv BunAdvisory) string {
	if i := strings.LastIndex(adv.URL, "/"); i >= 0 {
		if last := adv.URL[i+1:]; strings.HasPrefix(last, "GHSA-") {
			return last
		}
	}
	return scanners.StringValue(adv.ID)
}
