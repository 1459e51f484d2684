// Package bandit adapts the bandit Python linter.
package bandit

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "bandit"

type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("bandit") }

func (s *Scanner) BuildCommand(target, output string) scanners.Command {
	return scanners.Command{
		Name: "bandit",
		Args: []string{"-r", target, "-f", "json", "-o", output, "--quiet"},
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseBanditOutput(data)
}
