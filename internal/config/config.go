// Package config loads run settings for orderstorm from a config file, the
// environment and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hhplus/orderstorm/internal/runner"
	"github.com/hhplus/orderstorm/internal/scenario"
	"github.com/hhplus/orderstorm/internal/threshold"
)

const (
	DefaultTimeout = 60 * time.Second
	DefaultLogLvl  = "info"

	highVUWarning = 2000
)

type Config struct {
	ConfigFile   string            `mapstructure:"-"`
	Scenario     string            `mapstructure:"scenario"`
	BaseURL      string            `mapstructure:"base_url"`
	Stages       []runner.Stage    `mapstructure:"stages"`
	VUs          int               `mapstructure:"vus"`
	Duration     time.Duration     `mapstructure:"duration"`
	Thresholds   []string          `mapstructure:"thresholds"`
	Headers      map[string]string `mapstructure:"headers"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	GracefulStop time.Duration     `mapstructure:"graceful_stop"`
	Seed         uint64            `mapstructure:"seed"`
	UsersFile    string            `mapstructure:"users_file"`
	JSONOutput   bool              `mapstructure:"json_output"`
	SummaryFile  string            `mapstructure:"summary_file"`
	HTMLOutput   string            `mapstructure:"html_output"`
	Dashboard    bool              `mapstructure:"dashboard"`
	LogErrors    bool              `mapstructure:"log_errors"`
	LogLevel     string            `mapstructure:"log_level"`
	LogPretty    bool              `mapstructure:"log_pretty"`
	Tracing      TracingConfig     `mapstructure:"tracing"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
	Propagate   *bool   `mapstructure:"propagate"` // defaults to true when enabled
}

// Enabled reports whether an exporter endpoint is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether trace context headers go out with requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// ApplyScenario fills every setting the user left unset from s. A custom
// load shape (stages, or vus with duration) replaces the scenario's shape
// entirely.
func (c *Config) ApplyScenario(s scenario.Scenario) {
	switch {
	case len(c.Stages) == 0 && c.VUs == 0 && c.Duration == 0:
		c.Stages = slices.Clone(s.Stages)
		c.VUs = s.VUs
		c.Duration = s.Duration
	case len(c.Stages) == 0 && len(s.Stages) == 0:
		if c.VUs == 0 {
			c.VUs = s.VUs
		}
		if c.Duration == 0 {
			c.Duration = s.Duration
		}
	}
	if c.Thresholds == nil {
		c.Thresholds = FlattenThresholds(s.Thresholds)
	}
	if c.BaseURL == "" {
		c.BaseURL = s.BaseURL
	}
	if c.SummaryFile == "" {
		c.SummaryFile = s.SummaryFile
	}
}

// FlattenThresholds turns a metric->expressions map into "metric:expr"
// entries, ordered by metric name.
func FlattenThresholds(set map[string][]string) []string {
	if len(set) == 0 {
		return []string{}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	out := []string{}
	for _, name := range names {
		for _, expr := range set[name] {
			out = append(out, name+":"+expr)
		}
	}
	return out
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the resolved configuration. Call it after ApplyScenario.
func (c Config) Validate() error {
	var issues []string

	if _, err := scenario.Lookup(c.Scenario); err != nil {
		issues = append(issues, err.Error())
	}

	if strings.TrimSpace(c.BaseURL) == "" {
		issues = append(issues, "base_url is required (use --help for usage information)")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		issues = append(issues, fmt.Sprintf("base_url %q must be an absolute http(s) URL", c.BaseURL))
	}

	if err := runner.ValidateStages(c.Stages, c.VUs, c.Duration); err != nil {
		issues = append(issues, err.Error())
	}
	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}

	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.GracefulStop < 0 {
		issues = append(issues, "graceful_stop must be >= 0")
	}
	if c.UsersFile != "" {
		switch strings.ToLower(filepath.Ext(c.UsersFile)) {
		case ".csv", ".json":
		default:
			issues = append(issues, fmt.Sprintf("users_file %q must be a .csv or .json file", c.UsersFile))
		}
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if lvl := strings.TrimSpace(c.LogLevel); lvl != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(lvl)); err != nil {
			issues = append(issues, fmt.Sprintf("log_level %q is not a valid level", c.LogLevel))
		}
	}
	for key := range c.Headers {
		if strings.TrimSpace(key) == "" {
			issues = append(issues, "header key cannot be empty")
			break
		}
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but worth flagging before a run.
func (c Config) Warnings() []string {
	var warnings []string
	peak := c.VUs
	for _, st := range c.Stages {
		peak = max(peak, st.Target)
	}
	if peak > highVUWarning {
		warnings = append(warnings, fmt.Sprintf("high worker count configured (%d VUs); ensure you have authorization to load the target system", peak))
	}
	if c.Tracing.Enabled() && c.Tracing.Insecure {
		warnings = append(warnings, "OTLP export runs without TLS (tracing insecure: true)")
	}
	return warnings
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
