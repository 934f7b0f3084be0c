// Package forms inventories the HTML forms on the root page.
package forms

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
	"github.com/vulnscan/vulnscan/pkg/regexcache"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Module is the name findings are reported under.
const Module = "forms"

const (
	formPattern   = `(?i)<form[^>]*>`
	inputPattern  = `(?i)<input[^>]+>`
	namePattern   = `(?i)name=["']([^"']+)`
	typePattern   = `(?i)type=["']([^"']+)`
	actionPattern = `(?i)action=["']([^"']+)`
	methodPattern = `(?i)method=["']([^"']+)`

	maxBody       = 250_000
	maxForms      = 50
	maxInputs     = 40
	inputWindow   = 1500
	maxActionLen  = 60
	maxNamesShown = 10
)

// Form is one form tag and the inputs found after it.
type Form struct {
	Method   string
	Action   string
	Inputs   []string
	Password bool
}

// Run fetches the root page and reports the form count and one finding per
// form. A form with a password input is low.
func Run(ctx context.Context, client probe.Getter) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)

	resp, err := client.Get(ctx, "", scanclient.GetOptions{})
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("Request error", err.Error())
		return out.List(), nil
	}

	forms, total := Extract(iohelper.Head(resp.Text(), maxBody))
	out.Info("Total forms", strconv.Itoa(total))
	for _, f := range forms {
		title := fmt.Sprintf("Form %s %s", strings.ToUpper(f.Method), iohelper.Head(f.Action, maxActionLen))
		detail := "fields=" + strings.Join(f.Inputs[:min(len(f.Inputs), maxNamesShown)], ",")
		sev := finding.Info
		if f.Password {
			sev = finding.Low
			detail += " | contains password"
		}
		out.Add(sev, title, detail)
	}
	return out.List(), nil
}

// Extract returns up to 50 forms of body and the total number of form tags.
// Inputs are attributed to a form when they start within 1500 bytes of its
// opening tag.
func Extract(body string) ([]Form, int) {
	locs := regexcache.MustGet(formPattern).FindAllStringIndex(body, -1)
	forms := make([]Form, 0, min(len(locs), maxForms))

	for _, loc := range locs[:min(len(locs), maxForms)] {
		tag := body[loc[0]:loc[1]]
		f := Form{Method: "get"}
		if m := regexcache.MustGet(methodPattern).FindStringSubmatch(tag); m != nil {
			f.Method = strings.ToLower(m[1])
		}
		if m := regexcache.MustGet(actionPattern).FindStringSubmatch(tag); m != nil {
			f.Action = m[1]
		}

		window := iohelper.Window(body, loc[1], inputWindow)
		inputs := regexcache.MustGet(inputPattern).FindAllString(window, -1)
		seen := make(map[string]bool)
		for _, in := range inputs[:min(len(inputs), maxInputs)] {
			if m := regexcache.MustGet(namePattern).FindStringSubmatch(in); m != nil && !seen[m[1]] {
				seen[m[1]] = true
				f.Inputs = append(f.Inputs, m[1])
			}
			if m := regexcache.MustGet(typePattern).FindStringSubmatch(in); m != nil && strings.EqualFold(m[1], "password") {
				f.Password = true
			}
		}
		forms = append(forms, f)
	}
	return forms, len(locs)
}
