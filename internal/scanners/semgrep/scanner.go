// Package semgrep adapts the semgrep pattern scanner. It runs on every
// project regardless of language.
package semgrep

import (
	depExec "secreview/internal/exec"
	"secreview/internal/model"
	"secreview/internal/scanners"
)

const ToolName = "semgrep"

// DefaultConfig selects rules from the semgrep registry.
const DefaultConfig = "auto"

type Scanner struct {
	config string
}

// New returns a semgrep adapter using the given rule config ("auto" when empty).
func New(config string) *Scanner {
	if config == "" {
		config = DefaultConfig
	}
	return &Scanner{config: config}
}

func (s *Scanner) Name() string { return ToolName }

func (s *Scanner) IsAvailable() bool { return depExec.Available("semgrep") }

func (s *Scanner) BuildCommand(target, output string) scanners.Command {
	return scanners.Command{
		Name: "semgrep",
		Args: []string{
			"scan",
			"--config=" + s.config,
			"--json",
			"--output=" + output,
			"--quiet",
			target,
		},
	}
}

func (s *Scanner) Parse(outputPath string) ([]model.Finding, error) {
	data, err := scanners.ReadArtifact(outputPath)
	if err != nil {
		return nil, err
	}
	return ParseSemgrepOutput(data)
}
