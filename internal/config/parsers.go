package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/hhplus/orderstorm/internal/runner"
)

// lookupSetting searches for a value in settings using multiple candidate keys.
// It performs case-insensitive matching by also checking lowercase versions.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if val, ok := settings[key]; ok {
			return val, true
		}
		lower := strings.ToLower(key)
		if val, ok := settings[lower]; ok {
			return val, true
		}
	}
	return nil, false
}

// trimmed strips whitespace from string settings and maps blank strings to
// nil, so every coercion below treats "" as unset.
func trimmed(value interface{}) interface{} {
	if s, ok := value.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return nil
	}
	return value
}

func asString(value interface{}) (string, error) {
	return cast.ToStringE(value)
}

func asInt(value interface{}) (int, error) {
	return cast.ToIntE(trimmed(value))
}

// asUint64 rejects negative values.
func asUint64(value interface{}) (uint64, error) {
	return cast.ToUint64E(trimmed(value))
}

func asFloat64(value interface{}) (float64, error) {
	return cast.ToFloat64E(trimmed(value))
}

func asBool(value interface{}) (bool, error) {
	return cast.ToBoolE(trimmed(value))
}

// asDuration parses strings with time.ParseDuration and reads bare numbers as
// seconds, the way k6 options do.
func asDuration(value interface{}) (time.Duration, error) {
	switch v := trimmed(value).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		return time.ParseDuration(v)
	}
	secs, err := cast.ToFloat64E(value)
	if err != nil {
		return 0, fmt.Errorf("unsupported duration type %T", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// asStringSlice keeps a single string whole; thresholds such as
// "p(95) < 500" contain spaces.
func asStringSlice(value interface{}) ([]string, error) {
	if s, ok := value.(string); ok {
		return []string{s}, nil
	}
	if value == nil {
		return nil, nil
	}
	return cast.ToStringSliceE(value)
}

// toStringKeyMap converts a decoded YAML/JSON map and lowercases its keys.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	result := make(map[string]interface{}, len(m))
	for key, val := range m {
		result[strings.ToLower(strings.TrimSpace(key))] = val
	}
	return result, nil
}

// parseStageSpec parses the "duration:target" shorthand, e.g. "30s:100".
func parseStageSpec(spec string) (runner.Stage, error) {
	durPart, targetPart, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok {
		return runner.Stage{}, fmt.Errorf("stage %q must be in duration:target form", spec)
	}
	dur, err := time.ParseDuration(strings.TrimSpace(durPart))
	if err != nil {
		return runner.Stage{}, fmt.Errorf("stage %q: %w", spec, err)
	}
	target, err := strconv.Atoi(strings.TrimSpace(targetPart))
	if err != nil {
		return runner.Stage{}, fmt.Errorf("stage %q: target must be an integer", spec)
	}
	return runner.Stage{Duration: dur, Target: target}, nil
}

func parseStageSpecs(specs []string) ([]runner.Stage, error) {
	stages := make([]runner.Stage, 0, len(specs))
	for _, spec := range specs {
		st, err := parseStageSpec(spec)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, nil
}
