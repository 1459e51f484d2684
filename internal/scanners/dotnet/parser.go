package dotnet

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"secreview/internal/model"
	"secreview/internal/scanners"
	"secreview/internal/severity"
)

var (
	sevRegex     = regexp.MustCompile(`(?i)\b(Critical|High|Moderate|Medium|Low)\b`)
	urlRegex     = regexp.MustCompile(`https?://[^\s>]+`)
	projectRegex = regexp.MustCompile("^\\s*Project [`'\"]?([^`'\"]+?)[`'\"]? has the following vulnerable packages")

	// MSBuild and NuGet failures, e.g. "MSBUILD : error MSB1011: Specify which project ...".
	errorRegex = regexp.MustCompile(`(?i)\berror\s+(?:MSB|NU|NETSDK)\d+:.*`)
)

// ParseDotnetOutput reads the table printed by
// `dotnet list package --vulnerable --include-transitive`.
//
// Package rows start with ">" and carry the resolved version right before the
// severity column. A row holding only a severity and URL is a further
// advisory for the package on the previous row.
func ParseDotnetOutput(data []byte) ([]model.Finding, error) {
	var findings []model.Finding
	sc := bufio.NewScanner(bytes.NewReader(data))

	var project, lastPkg, lastVer string

	for sc.Scan() {
		line := sc.Text()
		if m := errorRegex.FindString(line); m != "" {
			return nil, fmt.Errorf("dotnet list package failed: %s", strings.TrimSpace(m))
		}
		if m := projectRegex.FindStringSubmatch(line); m != nil {
			project = m[1]
			lastPkg, lastVer = "", ""
			continue
		}

		lineLower := strings.ToLower(line)
		if strings.Contains(lineLower, "the following") ||
			strings.Contains(lineLower, "top-level package") ||
			strings.Contains(lineLower, "transitive package") {
			continue
		}

		sevMatch := sevRegex.FindString(line)
		if sevMatch == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var pkg, ver string
		switch {
		case strings.EqualFold(parts[0], sevMatch):
			if lastPkg == "" {
				continue
			}
			pkg, ver = lastPkg, lastVer
		case parts[0] == ">" && len(parts) >= 3:
			pkg = parts[1]
			ver = parts[2]
			for i, p := range parts {
				if i > 1 && strings.EqualFold(p, sevMatch) {
					ver = parts[i-1]
					break
				}
			}
			lastPkg, lastVer = pkg, ver
		default:
			continue
		}

		url := urlRegex.FindString(line)
		title := pkg
		if url != "" {
			title = fmt.Sprintf("%s - %s", pkg, url)
		}

		metadata := map[string]any{
			"package":           pkg,
			"installed_version": ver,
			"dotnet_severity":   sevMatch,
		}
		if url != "" {
			metadata["url"] = url
		}
		if project != "" {
			metadata["project"] = project
		}

		findings = append(findings, model.Finding{
			Tool:        ToolName,
			Title:       title,
			Severity:    severity.NormalizeOrDefault(ToolName, sevMatch),
			Category:    scanners.CategoryDependency,
			FilePath:    projectFile(project),
			CodeSnippet: fmt.Sprintf("Package: %s@%s", pkg, ver),
			Description: fmt.Sprintf("%s severity advisory for %s %s", sevMatch, pkg, ver),
			Metadata:    metadata,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return findings, nil
}

// projectFile names the manifest a project's findings are attributed to.
func projectFile(project string) string {
	switch {
	case project == "":
		return ""
	case strings.HasSuffix(project, ".csproj"):
		return project
	default:
		return project + ".csproj"
	}
}
