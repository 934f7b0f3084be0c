package finding

// Finding is a single reported observation.
type Finding struct {
	Module   string   `json:"module"`
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Detail   string   `json:"detail"`
}

// New builds a Finding.
func New(module string, severity Severity, title, detail string) Finding {
	return Finding{
		Module:   module,
		Severity: severity,
		Title:    title,
		Detail:   detail,
	}
}

// Filter returns the findings ranked at or above min, preserving order.
func Filter(findings []Finding, min Severity) []Finding {
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.AtLeast(min) {
			out = append(out, f)
		}
	}
	return out
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}

// Modules returns the distinct module names in first-seen order.
func Modules(findings []Finding) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range findings {
		if !seen[f.Module] {
			seen[f.Module] = true
			out = append(out, f.Module)
		}
	}
	return out
}
