// Package npm adapts `npm audit`. npm prints its report on stdout, so the
// command asks the orchestrator to capture stdout into the artifact.
package npm

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "npm_audit"

type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("npm") }

// BuildCommand ignores output: the report arrives on stdout.
func (s *Scanner) BuildCommand(target, _ string) scanners.Command {
	return scanners.Command{
		Name:          "npm",
		Args:          []string{"audit", "--json", "--prefix", target},
		CaptureStdout: true,
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseNpmAudit(data)
}
