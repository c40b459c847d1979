package engine

import (
	"github.com/hhplus/orderstorm/internal/behavior"
	"github.com/hhplus/orderstorm/internal/config"
	"github.com/hhplus/orderstorm/internal/feeder"
	"github.com/hhplus/orderstorm/internal/scenario"
	"github.com/hhplus/orderstorm/internal/threshold"
)

// FromConfig resolves a validated config into a RunConfig, taking request
// behavior and response rules from the selected scenario.
func FromConfig(cfg config.Config) (RunConfig, error) {
	s, err := scenario.Lookup(cfg.Scenario)
	if err != nil {
		return RunConfig{}, &ConfigError{Err: err}
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return RunConfig{}, &ConfigError{Err: err}
	}

	newProfile := s.NewProfile
	if cfg.UsersFile != "" {
		ids, err := feeder.Load(cfg.UsersFile, feeder.DefaultField)
		if err != nil {
			return RunConfig{}, &ConfigError{Err: err}
		}
		newProfile = withUsers(s.NewProfile, ids)
	}

	return RunConfig{
		Scenario:     s.Name,
		BaseURL:      cfg.BaseURL,
		Stages:       cfg.Stages,
		VUs:          cfg.VUs,
		Duration:     cfg.Duration,
		Thresholds:   thresholds,
		Timeout:      cfg.Timeout,
		GracefulStop: cfg.GracefulStop,
		Seed:         cfg.Seed,
		Headers:      cfg.Headers,
		NewProfile:   newProfile,
		Classifier:   s.Classifier,
		Summarize:    s.Summarize,
		LogErrors:    cfg.LogErrors,
	}, nil
}

// withUsers hands the loaded user ids to order profiles in file order. Other
// profiles carry no user and are returned unchanged.
func withUsers(newProfile func() behavior.Profile, ids []int64) func() behavior.Profile {
	return func() behavior.Profile {
		p := newProfile()
		if order, ok := p.(*behavior.Order); ok {
			// ids is non-empty once Load succeeds.
			users, _ := feeder.NewRoundRobin(ids)
			order.Users = users
		}
		return p
	}
}
