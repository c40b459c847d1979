package scenario

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hhplus/orderstorm/internal/behavior"
	"github.com/hhplus/orderstorm/internal/classify"
	"github.com/hhplus/orderstorm/internal/metrics"
	"github.com/hhplus/orderstorm/internal/runner"
)

// ErrUnknownScenario is returned by Lookup for names outside the catalogue.
var ErrUnknownScenario = errors.New("unknown scenario")

// Line is one row of a scenario-specific summary block.
type Line struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Scenario bundles everything a named run needs: load shape, thresholds,
// request behavior and how responses are judged.
type Scenario struct {
	Name        string
	Description string
	// BaseURL is the target used when none is configured.
	BaseURL string

	Stages   []runner.Stage
	VUs      int
	Duration time.Duration

	Thresholds map[string][]string

	// NewProfile returns a fresh profile for each run.
	NewProfile func() behavior.Profile
	Classifier classify.Config

	// SummaryFile is written at the end of the run unless overridden.
	SummaryFile string
	// Summarize renders the scenario's own result block.
	Summarize func(metrics.Snapshot) []Line
}

// Clone returns a deep copy so callers can override fields freely.
func (s Scenario) Clone() Scenario {
	out := s
	out.Stages = slices.Clone(s.Stages)
	if s.Thresholds != nil {
		out.Thresholds = make(map[string][]string, len(s.Thresholds))
		for k, v := range s.Thresholds {
			out.Thresholds[k] = slices.Clone(v)
		}
	}
	out.Classifier.AllowedStatuses = slices.Clone(s.Classifier.AllowedStatuses)
	out.Classifier.Checks = slices.Clone(s.Classifier.Checks)
	return out
}

// DefaultName is used when no scenario is selected.
const DefaultName = "smoke"

// Default targets. The order scenarios run from a container against the host.
const (
	LocalBaseURL  = "http://localhost:8080"
	DockerBaseURL = "http://host.docker.internal:8080"
)

var catalogue = map[string]Scenario{}

func register(s Scenario) {
	catalogue[s.Name] = s
}

// Names lists the catalogue in lexical order.
func Names() []string {
	names := slices.Collect(maps.Keys(catalogue))
	sort.Strings(names)
	return names
}

// Lookup returns a copy of the named scenario. Names are case-insensitive.
func Lookup(name string) (Scenario, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultName
	}
	s, ok := catalogue[key]
	if !ok {
		return Scenario{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownScenario, name, strings.Join(Names(), ", "))
	}
	return s.Clone(), nil
}
