// Package dotnet adapts `dotnet list package --vulnerable`. The tool only
// prints a text table on stdout, which becomes the artifact.
package dotnet

import (
	"path"
	"path/filepath"
	"sort"

	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "dotnet"

// Manifests select the adapter.
var Manifests = []string{"*.sln", "*.csproj"}

type Scanner struct {
	project string
}

// New returns the adapter for the given root-level solution or project
// file. An empty project lets dotnet search the target directory, which
// only works when it holds exactly one of them.
func New(project string) *Scanner { return &Scanner{project: project} }

// ProjectFile picks the file to list from the root manifests: the first
// solution, otherwise the first project file.
func ProjectFile(manifests []string) string {
	for _, pattern := range Manifests {
		var matches []string
		for _, m := range manifests {
			if ok, _ := path.Match(pattern, m); ok {
				matches = append(matches, m)
			}
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0]
		}
	}
	return ""
}

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("dotnet") }

// BuildCommand lists packages for the configured solution or project inside
// target. It assumes packages were already restored.
func (s *Scanner) BuildCommand(target, _ string) scanners.Command {
	listTarget := target
	if s.project != "" {
		listTarget = filepath.Join(target, s.project)
	}
	return scanners.Command{
		Name:          "dotnet",
		Args:          []string{"list", listTarget, "package", "--vulnerable", "--include-transitive"},
		CaptureStdout: true,
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseDotnetOutput(data)
}
