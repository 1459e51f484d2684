// Package trivy adapts a trivy filesystem scan, which audits every lockfile
// and manifest it recognizes under the target.
package trivy

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "trivy"

// Manifests lists the root files that make a trivy run worthwhile.
var Manifests = []string{
	"package.json",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"requirements*.txt",
	"Pipfile",
	"Pipfile.lock",
	"poetry.lock",
	"Gemfile.lock",
	"pom.xml",
	"build.gradle",
	"go.mod",
	"Cargo.lock",
	"composer.lock",
	"*.csproj",
}

type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("trivy") }

func (s *Scanner) BuildCommand(target, output string) scanners.Command {
	return scanners.Command{
		Name: "trivy",
		Args: []string{"fs", "--format", "json", "--output", output, "--quiet", target},
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseTrivyOutput(data)
}
