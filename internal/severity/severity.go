// Package severity maps each scanner's native severity vocabulary onto the
// four-level model.Severity ordinal.
package severity

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"secreview/internal/model"
)

var (
	// ErrUnknownTool is returned when no table is registered for a tool.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUnmappableSeverity is returned when a tool's table has no matching key.
	ErrUnmappableSeverity = errors.New("unmappable severity")
)

// Default is assigned by adapters when normalization fails.
const Default = model.SeverityMedium

// tables is read-only after package initialization.
var tables = map[string]map[string]model.Severity{
	"semgrep": {
		"ERROR":   model.SeverityCritical,
		"WARNING": model.SeverityHigh,
		"INFO":    model.SeverityMedium,
		"NOTE":    model.SeverityLow,
	},
	"bandit": {
		"HIGH":   model.SeverityCritical,
		"MEDIUM": model.SeverityHigh,
		"LOW":    model.SeverityMedium,
	},
	"gosec": {
		"HIGH":   model.SeverityHigh,
		"MEDIUM": model.SeverityMedium,
		"LOW":    model.SeverityLow,
	},
	"npm_audit": npmStyle,
	"bun_audit": npmStyle,
	"trivy": {
		"CRITICAL": model.SeverityCritical,
		"HIGH":     model.SeverityHigh,
		"MEDIUM":   model.SeverityMedium,
		"LOW":      model.SeverityLow,
		"UNKNOWN":  model.SeverityMedium,
	},
	"dotnet": {
		"Critical": model.SeverityCritical,
		"High":     model.SeverityHigh,
		"Moderate": model.SeverityMedium,
		"Low":      model.SeverityLow,
	},
}

var npmStyle = map[string]model.Severity{
	"critical": model.SeverityCritical,
	"high":     model.SeverityHigh,
	"moderate": model.SeverityMedium,
	"low":      model.SeverityLow,
	"info":     model.SeverityLow,
}

func lookupTable(tool string) (map[string]model.Severity, bool) {
	if t, ok := tables[tool]; ok {
		return t, true
	}
	for name, t := range tables {
		if strings.EqualFold(name, tool) {
			return t, true
		}
	}
	return nil, false
}

// Normalize maps a tool's native severity string to an ordinal.
// An exact match is tried first, then a case-insensitive match on table keys.
func Normalize(tool, native string) (model.Severity, error) {
	table, ok := lookupTable(tool)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	if sev, ok := table[native]; ok {
		return sev, nil
	}
	trimmed := strings.TrimSpace(native)
	for key, sev := range table {
		if strings.EqualFold(key, trimmed) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q for tool %q", ErrUnmappableSeverity, native, tool)
}

// NormalizeOrDefault is Normalize with failures replaced by Default.
func NormalizeOrDefault(tool, native string) model.Severity {
	sev, err := Normalize(tool, native)
	if err != nil {
		return Default
	}
	return sev
}

// Tools returns the registered tool names, sorted.
func Tools() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns a copy of the mapping registered for tool.
func Table(tool string) (map[string]model.Severity, bool) {
	t, ok := lookupTable(tool)
	if !ok {
		return nil, false
	}
	out := make(map[string]model.Severity, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out, true
}
