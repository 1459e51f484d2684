// Package gosec adapts the gosec Go linter. It runs from inside the target
// so that the "./..." package pattern resolves against the project module.
package gosec

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "gosec"

type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("gosec") }

func (s *Scanner) BuildCommand(target, output string) scanners.Command {
	return scanners.Command{
		Name: "gosec",
		Args: []string{"-fmt=json", "-out=" + output, "-no-fail", "-quiet", "./..."},
		Dir:  target,
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseGosecOutput(data)
}
