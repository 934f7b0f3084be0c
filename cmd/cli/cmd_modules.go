package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/jsonutil"
	"github.com/vulnscan/vulnscan/pkg/modules"
)

type moduleInfo struct {
	ID          modules.ID `json:"id"`
	Description string     `json:"description"`
}

type moduleList struct {
	Modules  []moduleInfo            `json:"modules"`
	Profiles map[string][]modules.ID `json:"profiles"`
	Default  string                  `json:"default_profile"`
}

func listModules() moduleList {
	reg := modules.Default()
	out := moduleList{
		Profiles: make(map[string][]modules.ID),
		Default:  modules.DefaultProfile,
	}
	for _, id := range reg.IDs() {
		m, _ := reg.Lookup(id)
		out.Modules = append(out.Modules, moduleInfo{ID: id, Description: m.Description()})
	}
	for _, name := range modules.ProfileNames() {
		ids, _ := modules.Profile(name)
		out.Profiles[name] = ids
	}
	return out
}

func runModules(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("modules", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return exitCode(fmt.Errorf("%w: %w", errUsage, err))
	}

	list := listModules()
	if *asJSON {
		enc := jsonutil.NewStreamEncoder(stdout)
		enc.SetIndent("  ")
		if err := enc.Encode(list); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return defaults.ExitRuntimeError
		}
		return defaults.ExitSuccess
	}

	fmt.Fprintln(stdout, "Modules (recommended order):")
	for _, m := range list.Modules {
		fmt.Fprintf(stdout, "  %-9s %s\n", m.ID, m.Description)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Profiles:")
	for _, name := range modules.ProfileNames() {
		marker := ""
		if name == list.Default {
			marker = " (default)"
		}
		fmt.Fprintf(stdout, "  %-9s %s%s\n", name, modules.Names(list.Profiles[name]), marker)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Select with -modules a,b, -profile "+strings.Join(modules.ProfileNames(), "|")+" or -all.")
	return defaults.ExitSuccess
}
