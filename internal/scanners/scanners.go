// Package scanners defines the contract every tool adapter implements and
// the rules that decide which adapters apply to a project.
package scanners

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"

	"secreview/internal/detect"
	"secreview/internal/model"
)

// Categories assigned by adapters whose tool has no category of its own.
const (
	CategorySecurity   = "security"
	CategoryDependency = "dependency-vulnerability"
)

// Command describes one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// CaptureStdout marks tools that print their report instead of writing
	// it; the caller redirects stdout into the output artifact.
	CaptureStdout bool
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Scanner adapts one external analysis tool.
type Scanner interface {
	// Name is the tool name; it doubles as the severity table key.
	Name() string
	// IsAvailable probes the environment without running the tool.
	IsAvailable() bool
	// BuildCommand is a pure function of its inputs.
	BuildCommand(target, output string) Command
	// Parse reads a completed artifact. On unreadable or malformed input it
	// returns no findings and an error meant only as a diagnostic.
	Parse(outputPath string) ([]model.Finding, error)
}

// Rule decides whether a scanner applies to a detected environment.
type Rule func(env detect.Summary) bool

// Always applies to every project.
func Always() Rule {
	return func(detect.Summary) bool { return true }
}

// WhenLanguage applies when lang was detected in the tree.
func WhenLanguage(lang string) Rule {
	return func(env detect.Summary) bool { return env.HasLanguage(lang) }
}

// WhenManifest applies when any of the patterns names a file at the target root.
func WhenManifest(patterns ...string) Rule {
	return func(env detect.Summary) bool {
		for _, p := range patterns {
			if env.HasManifest(p) {
				return true
			}
		}
		return false
	}
}

// Entry pairs a scanner with its selection rule.
type Entry struct {
	Scanner Scanner
	Rule    Rule
}

// Select returns the scanners whose rule matches env, in entry order,
// leaving out any whose name appears in disabled.
func Select(entries []Entry, env detect.Summary, disabled []string) []Scanner {
	off := make(map[string]struct{}, len(disabled))
	for _, d := range disabled {
		off[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}

	var out []Scanner
	for _, e := range entries {
		if _, skip := off[strings.ToLower(e.Scanner.Name())]; skip {
			continue
		}
		if e.Rule == nil || e.Rule(env) {
			out = append(out, e.Scanner)
		}
	}
	return out
}

// ReadArtifact loads a tool's output file.
func ReadArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return data, nil
}

// DecodeJSON unmarshals a tool report into v. It reports empty=true and no
// error when data holds only whitespace, which several tools emit on a
// clean run.
func DecodeJSON(data []byte, v any) (empty bool, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode output: %w", err)
	}
	return false, nil
}

// StringValue renders a loosely typed JSON scalar (string or number) as text.
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
