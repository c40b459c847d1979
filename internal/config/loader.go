package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hhplus/orderstorm/internal/runner"
	"github.com/hhplus/orderstorm/internal/scenario"
)

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// envSettings are the environment overrides, named as k6 exposes them through __ENV.
type envSettings struct {
	BaseURL     string `envconfig:"BASE_URL"`
	TestType    string `envconfig:"TEST_TYPE"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogPretty   *bool  `envconfig:"LOG_PRETTY"`
	SummaryFile string `envconfig:"SUMMARY_FILE"`
	UsersFile   string `envconfig:"USERS_FILE"`
}

// Load resolves a Config with precedence scenario < file < environment < flags.
// The result still needs Validate.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Headers:      map[string]string{},
		Timeout:      DefaultTimeout,
		GracefulStop: runner.DefaultGracefulStop,
		LogLevel:     DefaultLogLvl,
		ConfigFile:   configPath,
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	if s, err := scenario.Lookup(cfg.Scenario); err == nil {
		cfg.Scenario = s.Name
		cfg.ApplyScenario(s)
	}

	return cfg, nil
}

func applyEnvironment(cfg *Config) error {
	var env envSettings
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if v := strings.TrimSpace(env.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(env.TestType); v != "" {
		cfg.Scenario = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if env.LogPretty != nil {
		cfg.LogPretty = *env.LogPretty
	}
	if v := strings.TrimSpace(env.SummaryFile); v != "" {
		cfg.SummaryFile = v
	}
	if v := strings.TrimSpace(env.UsersFile); v != "" {
		cfg.UsersFile = v
	}
	return nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "scenario", "test_type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		cfg.Scenario = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("baseURL: %w", err)
		}
		cfg.BaseURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "stages"); ok {
		stages, err := parseStages(raw)
		if err != nil {
			return fmt.Errorf("stages: %w", err)
		}
		cfg.Stages = stages
	}

	if raw, ok := lookupSetting(settings, "vus"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("vus: %w", err)
		}
		cfg.VUs = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := parseThresholds(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := cast.ToStringMapStringE(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "gracefulstop", "graceful_stop", "graceful-stop"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("gracefulStop: %w", err)
		}
		cfg.GracefulStop = dur
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asUint64(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "summaryfile", "summary_file", "summary-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summaryFile: %w", err)
		}
		cfg.SummaryFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "usersfile", "users_file", "users-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("usersFile: %w", err)
		}
		cfg.UsersFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logpretty", "log_pretty", "log-pretty"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logPretty: %w", err)
		}
		cfg.LogPretty = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}

// parseStages accepts a list of {duration, target} maps or "30s:100" strings.
func parseStages(value interface{}) ([]runner.Stage, error) {
	if value == nil {
		return nil, nil
	}
	if specs, ok := value.([]string); ok {
		return parseStageSpecs(specs)
	}
	items, err := cast.ToSliceE(value)
	if err != nil {
		return nil, err
	}
	stages := make([]runner.Stage, 0, len(items))
	for idx, item := range items {
		if spec, ok := item.(string); ok {
			st, err := parseStageSpec(spec)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", idx, err)
			}
			stages = append(stages, st)
			continue
		}
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var st runner.Stage
		if raw, ok := lookupSetting(entry, "duration"); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d duration: %w", idx, err)
			}
			st.Duration = dur
		}
		if raw, ok := lookupSetting(entry, "target"); ok {
			val, err := asInt(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d target: %w", idx, err)
			}
			st.Target = val
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// parseThresholds accepts "metric:expr" strings or a map of metric to one or
// more expressions, mirroring k6's options.thresholds.
func parseThresholds(value interface{}) ([]string, error) {
	switch value.(type) {
	case map[string]interface{}, map[interface{}]interface{}:
		entries, err := toStringKeyMap(value)
		if err != nil {
			return nil, err
		}
		set := make(map[string][]string, len(entries))
		for metric, raw := range entries {
			exprs, err := asStringSlice(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", metric, err)
			}
			set[metric] = exprs
		}
		return FlattenThresholds(set), nil
	}
	thresholds, err := asStringSlice(value)
	if err != nil {
		return nil, err
	}
	if thresholds == nil {
		thresholds = []string{}
	}
	return thresholds, nil
}
