package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnscan/vulnscan/pkg/defaults"
	"github.com/vulnscan/vulnscan/pkg/finding"
	"github.com/vulnscan/vulnscan/pkg/modules"
)

func parse(t *testing.T, cfg *Config, args ...string) {
	t.Helper()
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse(args))
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	parse(t, cfg)

	assert.Equal(t, defaults.MaxRPS, cfg.MaxRPS)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.CrawlDepth)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.Equal(t, 12, cfg.AutoParamsLimit)
	assert.Equal(t, defaults.ListenAddr, cfg.Listen)
	assert.False(t, cfg.NoAdaptive)
}

func TestBindFlags(t *testing.T) {
	cfg := Default()
	parse(t, cfg,
		"-u", "https://example.test/?q=1",
		"-modules", "xss, sqli",
		"-m", "waf",
		"-params", "q,id",
		"-max-rps", "4",
		"-timeout", "3s",
		"-max-requests", "50",
		"-no-adaptive-rps",
		"-evasion",
		"-H", "X-Test: one",
		"-H", "Authorization: Bearer a:b",
		"-min-severity", "Low",
		"-k",
	)

	assert.Equal(t, "https://example.test/?q=1", cfg.Target)
	assert.Equal(t, []string{"xss", "sqli", "waf"}, cfg.Modules)
	assert.Equal(t, []string{"q", "id"}, cfg.Params)
	assert.Equal(t, 4.0, cfg.MaxRPS)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 50, cfg.MaxRequests)
	assert.True(t, cfg.NoAdaptive)
	assert.True(t, cfg.Evasion)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, map[string]string{"X-Test": "one", "Authorization": "Bearer a:b"}, cfg.Headers)

	cc := cfg.ClientConfig()
	assert.False(t, cc.Adaptive)
	assert.Equal(t, 50, cc.MaxRequests)
	assert.True(t, cc.InsecureSkipVerify)
}

func TestBindFlags_BadHeader(t *testing.T) {
	cfg := Default()
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.BindFlags(fs)
	assert.Error(t, fs.Parse([]string{"-H", "no-colon"}))
}

func TestParse_FileThenFlags(t *testing.T) {
	cfg, err := Parse([]byte(`
target: https://file.test/
modules: [policy, cors]
max_rps: 3
timeout: 5s
headers:
  X-From-File: "1"
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"policy", "cors"}, cfg.Modules)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 20, cfg.MaxPages, "unset keys keep defaults")

	parse(t, cfg, "-modules", "waf", "-max-rps", "2")
	assert.Equal(t, []string{"waf"}, cfg.Modules, "flag replaces file list")
	assert.Equal(t, 2.0, cfg.MaxRPS)
	assert.Equal(t, "https://file.test/", cfg.Target)
	assert.Equal(t, "1", cfg.Headers["X-From-File"])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("max_rps: [1, 2]"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Parse([]byte("unknown_key: true"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: api\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "api", cfg.Profile)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrMissingRequired)
}

func TestNormalize(t *testing.T) {
	cfg := Default()
	cfg.MaxRPS = 25
	cfg.Profile = " API "
	cfg.AutoParamsLimit = 0
	warnings := cfg.Normalize()

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "capped at 10")
	assert.Equal(t, 10.0, cfg.MaxRPS)
	assert.Equal(t, "api", cfg.Profile)
	assert.Equal(t, 12, cfg.AutoParamsLimit)

	cfg.MaxRPS = 0
	assert.Len(t, cfg.Normalize(), 1)
	assert.Equal(t, defaults.MaxRPS, cfg.MaxRPS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"ok", func(*Config) {}, nil},
		{"missing target", func(c *Config) { c.Target = "" }, ErrMissingRequired},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidConfig},
		{"negative budget", func(c *Config) { c.MaxRequests = -1 }, ErrInvalidConfig},
		{"negative depth", func(c *Config) { c.CrawlDepth = -1 }, ErrInvalidConfig},
		{"bad severity", func(c *Config) { c.MinSeverity = "urgent" }, finding.ErrUnknownSeverity},
		{"unknown module", func(c *Config) { c.Modules = []string{"headers"} }, modules.ErrUnknownModule},
		{"unknown profile", func(c *Config) { c.Profile = "paranoid" }, modules.ErrUnknownProfile},
		{"bad proxy", func(c *Config) { c.Proxy = "::" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Target = "https://example.test/"
			tt.mutate(cfg)
			err := cfg.ValidateScan()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestModuleIDs_Precedence(t *testing.T) {
	cfg := Default()
	ids, err := cfg.ModuleIDs()
	require.NoError(t, err)
	assert.Equal(t, []modules.ID{modules.Policy, modules.CORS, modules.Mixed}, ids, "default profile")

	cfg.Profile = "light"
	ids, _ = cfg.ModuleIDs()
	assert.Equal(t, []modules.ID{modules.XSS}, ids)

	cfg.Modules = []string{"waf"}
	ids, _ = cfg.ModuleIDs()
	assert.Equal(t, []modules.ID{modules.WAF}, ids, "explicit modules beat the profile")

	cfg.All = true
	ids, _ = cfg.ModuleIDs()
	assert.Equal(t, modules.All, ids)
}

func TestRunnerConfig(t *testing.T) {
	cfg := Default()
	parse(t, cfg, "-u", "http://example.test/", "-m", "crawl", "-crawl-depth", "0",
		"-max-pages", "5", "-auto-xss-sqli", "-apis-auto", "-min-severity", "medium")
	require.NoError(t, cfg.ValidateScan())

	rc, err := cfg.RunnerConfig()
	require.NoError(t, err)
	assert.Equal(t, []modules.ID{modules.Crawl}, rc.Modules)
	assert.Equal(t, 0, rc.Crawl.MaxDepth)
	assert.Equal(t, 5, rc.Crawl.MaxPages)
	assert.True(t, rc.AutoXSSSQLi)
	assert.True(t, rc.APIsAuto)
	assert.Equal(t, finding.Medium, rc.MinSeverity)
	assert.True(t, rc.Client.Adaptive)
}
