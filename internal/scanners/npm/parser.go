package npm

import (
	"fmt"
	"sort"

	json "github.com/json-iterator/go"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

// ManifestFile is the location recorded on npm findings; dependency
// findings are not line-addressable.
const ManifestFile = "package.json"

// AuditReport represents the structure of an npm v7+ audit report.
type AuditReport struct {
	Vulnerabilities map[string]AuditVuln `json:"vulnerabilities"`
}

type AuditVuln struct {
	Name         string            `json:"name"`
	Severity     string            `json:"severity"`
	Via          []json.RawMessage `json:"via"` // package names or advisory objects
	IsDirect     bool              `json:"isDirect"`
	Effects      []string          `json:"effects"`
	Range        string            `json:"range"`
	Nodes        []string          `json:"nodes"`
	FixAvailable any               `json:"fixAvailable"` // bool or object
}

// ViaDetail is an advisory entry of the "via" array.
type ViaDetail struct {
	Source     any      `json:"source"`
	Name       string   `json:"name"`
	Dependency string   `json:"dependency"`
	Title      string   `json:"title"`
	URL        string   `json:"url"`
	Severity   string   `json:"severity"`
	CWE        []string `json:"cwe"`
	Range      string   `json:"range"`
}

// ParseNpmAudit converts `npm audit --json` output into findings. Every
// advisory in a package's "via" list becomes its own finding. A package
// whose "via" holds no advisory objects (only names of the packages it
// inherits the problem from) yields one generic finding.
func ParseNpmAudit(data []byte) ([]model.Finding, error) {
	var report AuditReport
	empty, err := scanners.DecodeJSON(data, &report)
	if err != nil || empty {
		return nil, err
	}

	var findings []model.Finding
	for _, pkgName := range sortedKeys(report.Vulnerabilities) {
		vuln := report.Vulnerabilities[pkgName]
		native := vuln.Severity
		if native == "" {
			native = "moderate"
		}
		name := vuln.Name
		if name == "" {
			name = pkgName
		}
		sev := severity.NormalizeOrDefault(ToolName, native)
		fixed := parseFixAvailable(vuln.FixAvailable)

		details, refs := splitVia(vuln.Via)
		for _, d := range details {
			metadata := map[string]any{
				"package":      pkgName,
				"npm_severity": native,
				"url":          d.URL,
				"range":        vuln.Range,
			}
			if id := scanners.StringValue(d.Source); id != "" {
				metadata["advisory_id"] = id
			}
			if fixed != "" {
				metadata["fixed_version"] = fixed
			}

			title := name
			if d.Title != "" {
				title = fmt.Sprintf("%s - %s", name, d.Title)
			}
			var cwe string
			if len(d.CWE) > 0 {
				cwe = d.CWE[0]
			}

			findings = append(findings, model.Finding{
				Tool:        ToolName,
				Title:       title,
				Severity:    sev,
				Category:    scanners.CategoryDependency,
				FilePath:    ManifestFile,
				CodeSnippet: "Package: " + pkgName,
				Description: d.Title,
				CWE:         cwe,
				Metadata:    metadata,
			})
		}

		if len(details) == 0 {
			metadata := map[string]any{
				"package":      pkgName,
				"npm_severity": native,
				"range":        vuln.Range,
			}
			if len(refs) > 0 {
				metadata["via"] = refs
			}
			if fixed != "" {
				metadata["fixed_version"] = fixed
			}
			findings = append(findings, model.Finding{
				Tool:        ToolName,
				Title:       name,
				Severity:    sev,
				Category:    scanners.CategoryDependency,
				FilePath:    ManifestFile,
				CodeSnippet: "Package: " + pkgName,
				Description: "Vulnerability in " + pkgName,
				Metadata:    metadata,
			})
		}
	}
	return findings, nil
}

// splitVia separates advisory objects from bare package-name references.
func splitVia(via []json.RawMessage) (details []ViaDetail, refs []string) {
	for _, rv := range via {
		var s string
		if err := json.Unmarshal(rv, &s); err == nil {
			refs = append(refs, s)
			continue
		}
		var d ViaDetail
		if err := json.Unmarshal(rv, &d); err == nil {
			details = append(details, d)
		}
	}
	return details, refs
}

// parseFixAvailable reads "fixAvailable", which is either a bool or
// {"name": ..., "version": ..., "isSemVerMajor": ...}.
func parseFixAvailable(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		if v, ok := m["version"].(string); ok {
			return v
		}
	}
	return ""
}

func sortedKeys(m map[string]AuditVuln) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
