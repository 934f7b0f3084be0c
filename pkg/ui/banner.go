package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/vulnscan/vulnscan/pkg/defaults"
)

// Version and Commit can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/vulnscan/vulnscan/pkg/ui.Version=1.0.0 -X github.com/vulnscan/vulnscan/pkg/ui.Commit=abc123"
var (
	Version = defaults.Version
	Commit  = ""
)

// VersionString is the version line printed by the version command. The
// commit is shown only when one was stamped in.
func VersionString() string {
	if Commit == "" {
		return defaults.ToolName + " " + Version
	}
	return defaults.ToolName + " " + Version + " (" + Commit + ")"
}

var (
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

const bannerTagline = "Use only with explicit authorization and inside allowed scope."
