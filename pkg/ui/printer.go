package ui

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/ratelimit"
)

// Printer renders scan progress for a human. It is safe for concurrent
// use; adaptive events may arrive from the client while a module prints.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	upper cases.Caser
	title cases.Caser
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:     w,
		upper: cases.Upper(language.Und),
		title: cases.Title(language.Und),
	}
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

// Banner prints the tool name, version and the authorization reminder.
func (p *Printer) Banner() {
	p.println(BannerStyle.Render(fmt.Sprintf("VulnScan %s (restricted ethical scanner)", Version)))
	p.println(SubtitleStyle.Render(bannerTagline))
}

// Notice prints a plain informational line.
func (p *Printer) Notice(format string, args ...any) {
	p.println(SanitizeString(fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.println(WarningStyle.Render(SanitizeString(fmt.Sprintf(format, args...))))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	p.println(ErrorStyle.Render(SanitizeString(fmt.Sprintf(format, args...))))
}

// Heading returns the bracketed module heading, e.g. "[XSS]".
func (p *Printer) Heading(id modules.ID) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return "[" + p.upper.String(string(id)) + "]"
}

// ModuleStart prints the heading of a module about to run. note describes
// automatic passes and replaces the default text.
func (p *Printer) ModuleStart(id modules.ID, note string) {
	text := "running module..."
	if note != "" {
		text = note
	}
	p.println(HeadingStyle.Render(p.Heading(id) + " " + SanitizeString(text)))
}

// Label returns the padded severity label of a finding line.
func (p *Printer) Label(s finding.Severity) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("%-9s", p.upper.String(string(s)))
}

// Finding prints one finding as " - SEVERITY title: detail".
func (p *Printer) Finding(f finding.Finding) {
	line := fmt.Sprintf(" - %s %s: %s", p.Label(f.Severity), f.Title, f.Detail)
	p.println(SeverityStyle(f.Severity).Render(SanitizeString(line)))
}

// ModuleError prints a module that stopped early.
func (p *Printer) ModuleError(id modules.ID, err error) {
	p.println(ErrorStyle.Render(SanitizeString(fmt.Sprintf("Module %s error: %v", id, err))))
}

// Adaptive prints a rate ceiling change.
func (p *Printer) Adaptive(event ratelimit.EventType, ceiling float64) {
	var verb string
	switch event {
	case ratelimit.EventDecrease:
		verb = "decreased"
	case ratelimit.EventIncrease:
		verb = "increased"
	default:
		verb = string(event)
	}
	p.println(AdaptStyle.Render(fmt.Sprintf("[ADAPT] rate %s to %.2f rps", verb, ceiling)))
}

// Summary prints the per-severity counts, lowest severity first. Levels
// without findings are omitted.
func (p *Printer) Summary(counts map[finding.Severity]int) {
	p.println(SectionStyle.Render("Summary:"))
	if len(counts) == 0 {
		p.println("  no findings")
		return
	}
	for _, s := range finding.Severities {
		if n := counts[s]; n > 0 {
			p.mu.Lock()
			name := p.title.String(string(s))
			p.mu.Unlock()
			p.println(SeverityStyle(s).Render(fmt.Sprintf("  %s: %d", name, n)))
		}
	}
}
