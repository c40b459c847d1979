package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hhplus/orderstorm/internal/runner"
	"github.com/hhplus/orderstorm/internal/scenario"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orderstorm",
		Short:         "Closed-loop load generator for the order service",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target and scenario
	flags.StringP("scenario", "s", "", fmt.Sprintf("Scenario to run (%s; default %s)", strings.Join(scenario.Names(), ", "), scenario.DefaultName))
	flags.String("base-url", "", "Base URL of the service under test (default depends on scenario)")
	flags.StringSlice("header", nil, "Additional request header in key=value form")

	// Load shape
	flags.IntP("vus", "u", 0, "Constant number of workers (used with --duration)")
	flags.DurationP("duration", "d", 0, "How long to hold --vus workers (e.g. 30s, 1m)")
	flags.StringArray("stage", nil, "Ramp stage in duration:target form (repeatable, e.g. --stage 30s:100)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Duration("graceful-stop", runner.DefaultGracefulStop, "Time in-flight iterations may finish after the plan ends")
	flags.Uint64("seed", 0, "Seed for per-worker randomness (0 picks one from the clock)")

	// Thresholds
	flags.StringArray("threshold", nil, "Pass/fail criterion in metric:expr form (repeatable, e.g. 'http_req_duration:p(95)<500')")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("summary-file", "", "Write the run summary to this file (.json, .yaml or .yml)")
	flags.String("users-file", "", "CSV or JSON file of user ids handed to order requests in turn")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.Bool("log-errors", false, "Log failed requests to stderr (rate limited)")
	flags.String("log-level", DefaultLogLvl, "Log level (trace, debug, info, warn, error)")
	flags.Bool("log-pretty", false, "Human readable console logs instead of JSON")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; enables tracing")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of iterations to trace (0.0-1.0)")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Bool("tracing-propagate", true, "Send W3C trace context headers with requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment:\n  BASE_URL, TEST_TYPE, LOG_LEVEL, LOG_PRETTY, SUMMARY_FILE, USERS_FILE\n")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("scenario") {
		val, err := fs.GetString("scenario")
		if err != nil {
			return err
		}
		cfg.Scenario = strings.TrimSpace(val)
	}
	if fs.Changed("base-url") {
		val, err := fs.GetString("base-url")
		if err != nil {
			return err
		}
		cfg.BaseURL = strings.TrimSpace(val)
	}
	if fs.Changed("vus") {
		val, err := fs.GetInt("vus")
		if err != nil {
			return err
		}
		cfg.VUs = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("stage") {
		vals, err := fs.GetStringArray("stage")
		if err != nil {
			return err
		}
		stages, err := parseStageSpecs(vals)
		if err != nil {
			return err
		}
		cfg.Stages = stages
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("graceful-stop") {
		val, err := fs.GetDuration("graceful-stop")
		if err != nil {
			return err
		}
		cfg.GracefulStop = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetUint64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		// --threshold= with no expression clears the scenario's thresholds.
		cfg.Thresholds = make([]string, 0, len(val))
		for _, v := range val {
			if strings.TrimSpace(v) != "" {
				cfg.Thresholds = append(cfg.Thresholds, v)
			}
		}
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("summary-file") {
		val, err := fs.GetString("summary-file")
		if err != nil {
			return err
		}
		cfg.SummaryFile = strings.TrimSpace(val)
	}
	if fs.Changed("users-file") {
		val, err := fs.GetString("users-file")
		if err != nil {
			return err
		}
		cfg.UsersFile = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}
	if fs.Changed("log-pretty") {
		val, err := fs.GetBool("log-pretty")
		if err != nil {
			return err
		}
		cfg.LogPretty = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return applyTracingFlags(&cfg.Tracing, fs)
}

func applyTracingFlags(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}
