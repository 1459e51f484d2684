package model

import (
	"fmt"
	"strings"
)

// Severity is the normalized four-level ordinal. The zero value is not a
// valid severity; every Finding carries one of the four constants below.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// Severities lists the ordinals from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank returns an integer rank for comparison (Low=1, Critical=4, invalid=0).
func (s Severity) Rank() int {
	if s.Valid() {
		return int(s)
	}
	return 0
}

// Valid reports whether s is one of the four ordinals.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityCritical
}

// Max returns the more severe of s and o.
func (s Severity) Max(o Severity) Severity {
	if o.Rank() > s.Rank() {
		return o
	}
	return s
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Code returns the two-letter short form used in report file names.
func (s Severity) Code() string {
	switch s {
	case SeverityLow:
		return "LO"
	case SeverityMedium:
		return "ME"
	case SeverityHigh:
		return "HI"
	case SeverityCritical:
		return "CR"
	default:
		return "??"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity: %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity parses a severity name or short code case-insensitively.
// Accepts "moderate" as "medium".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "lo":
		return SeverityLow, nil
	case "medium", "moderate", "me":
		return SeverityMedium, nil
	case "high", "hi":
		return SeverityHigh, nil
	case "critical", "cr":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("invalid severity: %s", s)
	}
}
