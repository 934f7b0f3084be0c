// Command vulnscan is a rate-limited web vulnerability scanner for targets
// you are authorized to test. It runs scans from the command line or as a
// JSON API service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/ui"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return defaults.ExitUserError
	}

	switch args[0] {
	case "scan":
		return runScan(ctx, args[1:], stdout, stderr)
	case "serve", "server":
		return runServe(ctx, args[1:], stdout, stderr)
	case "modules", "list":
		return runModules(args[1:], stdout, stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, ui.VersionString())
		return defaults.ExitSuccess
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return defaults.ExitSuccess
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return defaults.ExitUserError
	}
}

func printUsage(w io.Writer) {
	p := ui.NewPrinter(w)
	p.Banner()
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.SectionStyle.Render("COMMANDS"))
	fmt.Fprintln(w, "  scan      Scan one target URL")
	fmt.Fprintln(w, "  serve     Run the scan API service")
	fmt.Fprintln(w, "  modules   List modules and profiles")
	fmt.Fprintln(w, "  version   Print the version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.SectionStyle.Render("EXAMPLES"))
	fmt.Fprintln(w, "  vulnscan scan -u 'https://staging.example.com/search?q=1' -profile light")
	fmt.Fprintln(w, "  vulnscan scan -u https://staging.example.com/ -modules crawl,xss -auto-xss-sqli")
	fmt.Fprintln(w, "  vulnscan serve -listen 127.0.0.1:5000")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'vulnscan <command> -h' for command flags.")
	fmt.Fprintln(w, "Only scan systems you own or are explicitly authorized to test.")
}
