// Package bun adapts `bun audit` for projects locked with bun.
package bun

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "bun_audit"

type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("bun") }

// BuildCommand runs inside the target; bun audit reads bun.lock from its
// working directory and prints the report on stdout.
func (s *Scanner) BuildCommand(target, _ string) scanners.Command {
	return scanners.Command{
		Name:          "bun",
		Args:          []string{"audit", "--json"},
		Dir:           target,
		CaptureStdout: true,
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseBunOutput(data)
}
