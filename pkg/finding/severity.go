package finding

import (
	"fmt"
	"strings"
)

// Severity represents the severity level of a finding.
// Values are lowercase strings so they serialize as-is.
type Severity string

const (
	// Critical is reserved for findings that indicate immediate compromise.
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix.
	High Severity = "high"

	// Medium represents likely exploitable behaviour (unescaped reflection, SQL errors).
	Medium Severity = "medium"

	// Low represents weak signals worth a manual look.
	Low Severity = "low"

	// Info represents observations with no direct security impact.
	Info Severity = "info"
)

// Severities lists every level from lowest to highest.
var Severities = []Severity{Info, Low, Medium, High, Critical}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s ranks at or above min.
// Unknown severities rank as Info; an empty min admits everything.
func (s Severity) AtLeast(min Severity) bool {
	if min == "" {
		return true
	}
	score := s.Score()
	if score == 0 {
		score = Info.Score()
	}
	return score >= min.Score()
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts user input such as "Medium" or " low " into a Severity.
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, v)
	}
	return s, nil
}
