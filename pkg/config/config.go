// Package config holds the scanner's settings: defaults, an optional YAML
// file and command-line flags, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vulnscan/vulnscan/pkg/crawler"
	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/modules"
	"github.com/vulnscan/vulnscan/pkg/runner"
	"github.com/vulnscan/vulnscan/pkg/scanclient"
)

// Config holds all scan and server options.
type Config struct {
	// Target
	Target string `yaml:"target"`

	// Module selection. All wins over Modules, Modules over Profile.
	Modules []string `yaml:"modules"`
	Profile string   `yaml:"profile"`
	All     bool     `yaml:"all"`
	Params  []string `yaml:"params"`

	// Safety
	MaxRPS      float64       `yaml:"max_rps"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRequests int           `yaml:"max_requests"`
	NoAdaptive  bool          `yaml:"no_adaptive"`

	// Checks
	Evasion         bool   `yaml:"evasion"`
	CrawlDepth      int    `yaml:"crawl_depth"`
	MaxPages        int    `yaml:"max_pages"`
	AutoXSSSQLi     bool   `yaml:"auto_xss_sqli"`
	AutoParamsLimit int    `yaml:"auto_params_limit"`
	APIsAuto        bool   `yaml:"apis_auto"`
	MinSeverity     string `yaml:"min_severity"`

	// Transport
	Headers  map[string]string `yaml:"headers"`
	Proxy    string            `yaml:"proxy"`
	Insecure bool              `yaml:"insecure"`

	// Server and telemetry
	Listen       string `yaml:"listen"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`

	// Output
	JSON    bool `yaml:"json"`
	NoColor bool `yaml:"no_color"`
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxRPS:          defaults.MaxRPS,
		Timeout:         time.Duration(defaults.TimeoutSeconds) * time.Second,
		MaxRequests:     defaults.MaxRequests,
		CrawlDepth:      defaults.CrawlDepth,
		MaxPages:        defaults.CrawlMaxPages,
		AutoParamsLimit: defaults.AutoParamsLimit,
		Listen:          defaults.ListenAddr,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingRequired, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// BindFlags registers the scan flags on fs. Current values become the flag
// defaults, so flags parsed later override the file.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	// === TARGET & MODULES ===
	fs.StringVar(&c.Target, "url", c.Target, "Target URL (may include query params for parameter checks)")
	fs.StringVar(&c.Target, "u", c.Target, "Target URL (alias)")
	mods := &listFlag{vals: &c.Modules}
	fs.Var(mods, "modules", "Comma list of modules (see 'vulnscan modules')")
	fs.Var(mods, "m", "Modules (alias)")
	fs.StringVar(&c.Profile, "profile", c.Profile, "Module set: light|hardening|api|full")
	fs.BoolVar(&c.All, "all", c.All, "Run all modules in recommended order")
	fs.Var(&listFlag{vals: &c.Params}, "params", "Comma list of parameter names for xss/sqli/reflect")

	// === SAFETY ===
	fs.Float64Var(&c.MaxRPS, "max-rps", c.MaxRPS, "Max requests per second (capped at 10)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Request timeout")
	fs.IntVar(&c.MaxRequests, "max-requests", c.MaxRequests, "Global max HTTP requests (0 = unlimited)")
	fs.BoolVar(&c.NoAdaptive, "no-adaptive-rps", c.NoAdaptive, "Disable adaptive RPS backoff")

	// === CHECKS ===
	fs.BoolVar(&c.Evasion, "evasion", c.Evasion, "Enable safe XSS/SQLi evasion variants")
	fs.IntVar(&c.CrawlDepth, "crawl-depth", c.CrawlDepth, "Depth for crawl module")
	fs.IntVar(&c.MaxPages, "max-pages", c.MaxPages, "Max pages for crawl module")
	fs.BoolVar(&c.AutoXSSSQLi, "auto-xss-sqli", c.AutoXSSSQLi, "After crawl: run xss and sqli on discovered params")
	fs.IntVar(&c.AutoParamsLimit, "auto-params-limit", c.AutoParamsLimit, "Limit of discovered params used for xss/sqli")
	fs.BoolVar(&c.APIsAuto, "apis-auto", c.APIsAuto, "Feed /rest/ routes found by jsmap to apis")
	fs.StringVar(&c.MinSeverity, "min-severity", c.MinSeverity, "Hide findings below: info|low|medium|high|critical")

	// === NETWORK ===
	fs.Var(&headerFlag{headers: &c.Headers}, "H", "Extra request header \"Name: value\" (repeatable)")
	fs.StringVar(&c.Proxy, "proxy", c.Proxy, "HTTP proxy URL")
	fs.BoolVar(&c.Insecure, "insecure", c.Insecure, "Skip TLS verification")
	fs.BoolVar(&c.Insecure, "k", c.Insecure, "Skip TLS (alias)")

	c.bindCommon(fs)
}

// BindServeFlags registers the scan service flags on fs.
func (c *Config) BindServeFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Listen, "listen", c.Listen, "Listen address")
	fs.Float64Var(&c.MaxRPS, "max-rps", c.MaxRPS, "Default max requests per second for submitted scans")
	fs.IntVar(&c.MaxRequests, "max-requests", c.MaxRequests, "Global max HTTP requests per scan (0 = unlimited)")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Request timeout")
	c.bindCommon(fs)
}

func (c *Config) bindCommon(fs *flag.FlagSet) {
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", c.OTLPEndpoint, "OTLP gRPC endpoint for traces (e.g. localhost:4317)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", c.OTLPInsecure, "Plaintext connection to the OTLP endpoint")
	fs.BoolVar(&c.JSON, "json", c.JSON, "Write findings as JSON lines to stdout")
	fs.BoolVar(&c.NoColor, "no-color", c.NoColor, "Disable colored output")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "Debug logging")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "Verbose (alias)")
}

// Normalize clamps values to their safe ranges and tidies free-form
// fields. It returns one warning per adjusted value.
func (c *Config) Normalize() []string {
	var warnings []string
	c.Target = strings.TrimSpace(c.Target)
	c.Profile = strings.ToLower(strings.TrimSpace(c.Profile))
	c.MinSeverity = strings.ToLower(strings.TrimSpace(c.MinSeverity))

	if c.MaxRPS > defaults.MaxRPSCeiling {
		warnings = append(warnings, fmt.Sprintf("max RPS capped at %g for safety; lowering", defaults.MaxRPSCeiling))
		c.MaxRPS = defaults.MaxRPSCeiling
	}
	if c.MaxRPS <= 0 {
		warnings = append(warnings, fmt.Sprintf("max RPS must be positive; using %g", defaults.MaxRPS))
		c.MaxRPS = defaults.MaxRPS
	}
	if c.AutoParamsLimit <= 0 {
		c.AutoParamsLimit = defaults.AutoParamsLimit
	}
	return warnings
}

// Validate checks option values. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig))
	}
	if c.MaxRequests < 0 {
		errs = append(errs, fmt.Errorf("%w: max_requests must not be negative", ErrInvalidConfig))
	}
	if c.CrawlDepth < 0 || c.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("%w: crawl limits must not be negative", ErrInvalidConfig))
	}
	if c.MinSeverity != "" {
		if _, err := finding.ParseSeverity(c.MinSeverity); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	if _, err := c.ModuleIDs(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.Proxy != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: proxy %q is not a URL", ErrInvalidConfig, c.Proxy))
		}
	}
	return errors.Join(errs...)
}

// ValidateScan is Validate plus the fields a scan needs.
func (c *Config) ValidateScan() error {
	if c.Target == "" {
		return fmt.Errorf("%w: target (-url)", ErrMissingRequired)
	}
	return c.Validate()
}

// ModuleIDs resolves the module selection: All, then explicit Modules,
// then Profile, then the default profile.
func (c *Config) ModuleIDs() ([]modules.ID, error) {
	switch {
	case c.All:
		return modules.Profile("full")
	case len(c.Modules) > 0:
		return modules.ParseIDs(c.Modules)
	case c.Profile != "":
		return modules.Profile(c.Profile)
	default:
		return modules.Profile(modules.DefaultProfile)
	}
}

// ClientConfig returns the client settings for one scan. The runner fills
// in the base URL.
func (c *Config) ClientConfig() scanclient.Config {
	return scanclient.Config{
		MaxRPS:             c.MaxRPS,
		Timeout:            c.Timeout,
		MaxRequests:        c.MaxRequests,
		Adaptive:           !c.NoAdaptive,
		Headers:            c.Headers,
		Proxy:              c.Proxy,
		InsecureSkipVerify: c.Insecure,
	}
}

// RunnerConfig builds the runner settings for a scan of c.Target. Call
// Normalize and ValidateScan first.
func (c *Config) RunnerConfig() (runner.Config, error) {
	ids, err := c.ModuleIDs()
	if err != nil {
		return runner.Config{}, err
	}
	var minSev finding.Severity
	if c.MinSeverity != "" {
		if minSev, err = finding.ParseSeverity(c.MinSeverity); err != nil {
			return runner.Config{}, err
		}
	}
	return runner.Config{
		Target:  c.Target,
		Modules: ids,
		Params:  c.Params,
		Evasion: c.Evasion,
		Crawl: crawler.Config{
			MaxDepth: c.CrawlDepth,
			MaxPages: c.MaxPages,
		},
		AutoXSSSQLi:     c.AutoXSSSQLi,
		AutoParamsLimit: c.AutoParamsLimit,
		APIsAuto:        c.APIsAuto,
		MinSeverity:     minSev,
		Client:          c.ClientConfig(),
	}, nil
}
