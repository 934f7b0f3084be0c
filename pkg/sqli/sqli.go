// Package sqli looks for SQL injection signals without sending anything
// that reads or changes data.
//
// Each parameter gets a pair of always-true and always-false suffixes.
// A database error string in the true response suggests error-based
// injection; true and false responses that differ in length while the
// true one also moves away from the baseline suggest boolean-based
// injection.
package sqli

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/iohelper"
	"github.com/vulnscan/vulnscan/pkg/probe"
)

// Module is the name findings are reported under.
const Module = "sqli"

// DBMS names the database family an error signature belongs to.
type DBMS string

const (
	DBMSMySQL      DBMS = "mysql"
	DBMSPostgreSQL DBMS = "postgresql"
	DBMSMSSQL      DBMS = "mssql"
	DBMSOracle     DBMS = "oracle"
	DBMSSQLite     DBMS = "sqlite"
)

// Signature is a lower-case substring of a database error page.
type Signature struct {
	Pattern string
	DBMS    DBMS
}

// Signatures are checked in order; the first match wins.
var Signatures = []Signature{
	{"you have an error in your sql syntax", DBMSMySQL},
	{"warning: mysql", DBMSMySQL},
	{"unclosed quotation mark after the character string", DBMSMSSQL},
	{"pg_query():", DBMSPostgreSQL},
	{"psql:", DBMSPostgreSQL},
	{"syntax error at or near", DBMSPostgreSQL},
	{"oracle error", DBMSOracle},
	{"ora-0", DBMSOracle},
	{"sqlite error", DBMSSQLite},
	{"mysql_fetch", DBMSMySQL},
}

// Pair is one true/false suffix pair.
type Pair struct {
	Tag   string
	True  string
	False string
}

var (
	basePairs = []Pair{
		{"base", "' AND 1=1--", "' AND 1=2--"},
	}
	evasionPairs = []Pair{
		{"mixed_case", "' AnD 1=1--", "' AnD 1=2--"},
		{"inline_comment", "'/**/AND/**/1=1--", "'/**/AND/**/1=2--"},
		{"encoded_quote", "%27 AND 1=1--", "%27 AND 1=2--"},
		{"hash_comment", "' AND 1=1#", "' AND 1=2#"},
	}
)

const (
	maxValueLen  = 80
	defaultValue = "1"

	// pairDelta is the minimum true/false length difference and
	// baselineDelta the minimum true/baseline difference for a boolean
	// signal.
	pairDelta     = 80
	baselineDelta = 40
)

// Config configures a Tester.
type Config struct {
	// Params are the parameter names to test. None means nothing is sent.
	Params []string

	// Evasion adds alternate spellings of the suffix pair.
	Evasion bool
}

// Tester runs the SQL injection check.
type Tester struct {
	client probe.Requester
	cfg    Config
}

// NewTester returns a tester sending requests through client.
func NewTester(client probe.Requester, cfg Config) *Tester {
	return &Tester{client: client, cfg: cfg}
}

// Run tests every configured parameter of target.
func (t *Tester) Run(ctx context.Context, target string) ([]finding.Finding, error) {
	out := probe.NewFindings(Module)
	if len(t.cfg.Params) == 0 {
		return out.List(), nil
	}

	tgt, err := probe.ParseTarget(target)
	if err != nil {
		return nil, err
	}

	baseline, err := probe.Baseline(ctx, t.client, tgt)
	if err != nil {
		if probe.Fatal(err) {
			return out.List(), err
		}
		out.Info("Baseline request failed", err.Error())
		return out.List(), nil
	}
	baseLen := baseline.Len()

	// Synthetic values given to absent parameters stay for later ones.
	params := tgt.Values()
	pairs := probe.Variants(basePairs, evasionPairs, t.cfg.Evasion)

	for _, p := range t.cfg.Params {
		if _, ok := params[p]; !ok {
			params[p] = defaultValue
		}
		value := iohelper.Head(params[p], maxValueLen)

		var errorFlagged, booleanFlagged bool
		for _, pair := range pairs {
			res, err := t.sendPair(ctx, tgt, with(params, p, value+pair.True), with(params, p, value+pair.False))
			if err != nil {
				if probe.Fatal(err) {
					return out.List(), err
				}
				out.Info(fmt.Sprintf("Parameter %s error", p), err.Error())
				break
			}

			if !errorFlagged {
				if sig, ok := Match(res.trueBody); ok {
					out.Add(finding.Medium,
						fmt.Sprintf("Parameter %s: possible error-based SQLi", p),
						fmt.Sprintf("%s (variant=%s, dbms=%s)", iohelper.Head(sig.Pattern, 70), pair.Tag, sig.DBMS))
					errorFlagged = true
				}
			}
			if !booleanFlagged && probe.Delta(res.trueLen, res.falseLen) > pairDelta && probe.Delta(res.trueLen, baseLen) > baselineDelta {
				out.Add(finding.Medium,
					fmt.Sprintf("Parameter %s: possible boolean SQLi", p),
					fmt.Sprintf("base=%d true=%d false=%d variant=%s", baseLen, res.trueLen, res.falseLen, pair.Tag))
				booleanFlagged = true
			}
			if errorFlagged && booleanFlagged {
				break
			}
		}
	}
	return out.List(), nil
}

type pairResult struct {
	trueBody string
	trueLen  int
	falseLen int
}

func (t *Tester) sendPair(ctx context.Context, tgt *probe.Target, trueParams, falseParams map[string]string) (pairResult, error) {
	resT, err := probe.Send(ctx, t.client, tgt, trueParams)
	if err != nil {
		return pairResult{}, err
	}
	resF, err := probe.Send(ctx, t.client, tgt, falseParams)
	if err != nil {
		return pairResult{}, err
	}
	return pairResult{trueBody: resT.Text(), trueLen: resT.Len(), falseLen: resF.Len()}, nil
}

func with(params map[string]string, name, value string) map[string]string {
	m := make(map[string]string, len(params))
	for k, v := range params {
		m[k] = v
	}
	m[name] = value
	return m
}

// Match returns the first signature found in body, compared
// case-insensitively.
func Match(body string) (Signature, bool) {
	low := strings.ToLower(body)
	for _, s := range Signatures {
		if strings.Contains(low, s.Pattern) {
			return s, true
		}
	}
	return Signature{}, false
}
