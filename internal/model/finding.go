package model

import (
	"sort"
	"strings"
)

// MetaTools is the metadata key holding every tool that reported a finding.
const MetaTools = "tools"

// Finding represents one normalized issue reported by a scanner.
// Dependency findings are not line-addressable and carry LineStart = LineEnd = 0.
type Finding struct {
	Tool        string         `json:"tool"`
	Title       string         `json:"title"`
	Severity    Severity       `json:"severity"`
	Category    string         `json:"category"`
	FilePath    string         `json:"file_path"`
	LineStart   int            `json:"line_start"`
	LineEnd     int            `json:"line_end"`
	CodeSnippet string         `json:"code_snippet"`
	Description string         `json:"description"`
	CWE         string         `json:"cwe"`
	Metadata    map[string]any `json:"metadata"`
}

// Tools splits the comma-joined Tool field into its member names.
func (f Finding) Tools() []string {
	var out []string
	for _, t := range strings.Split(f.Tool, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinTools renders a tool set as a sorted, comma-joined string.
func JoinTools(tools []string) string {
	uniq := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t = strings.TrimSpace(t); t != "" {
			uniq[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(uniq))
	for t := range uniq {
		out = append(out, t)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// Diagnostic records a recoverable per-tool problem encountered during a scan.
type Diagnostic struct {
	Tool    string `json:"tool"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Diagnostic stages.
const (
	StageUnavailable   = "unavailable"
	StageInvocation    = "invocation"
	StageTimeout       = "timeout"
	StageMissingOutput = "missing-output"
	StageParse         = "parse"
)
