// Package logging configures zerolog for the CLI and provides a throttled
// logger for per-request failures.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Setup configures the global zerolog logger and returns it. Unknown levels
// fall back to info. A nil writer means stderr so logs never mix with the
// report on stdout.
func Setup(level string, pretty bool, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if w == nil {
		w = os.Stderr
	}
	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
	return log.Logger
}

// Failure describes one request that was not acceptable.
type Failure struct {
	Worker  int
	Request string
	Status  int
	Outcome string
	Checks  []string
	Err     error
}

// FailureLogger logs failed requests at warn level, dropping entries above a
// fixed rate. Dropped entries are counted.
type FailureLogger struct {
	logger     zerolog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

// DefaultFailureRate is the steady-state number of failure lines per second.
const DefaultFailureRate = 20

// NewFailureLogger allows perSecond entries per second with an equal burst.
// perSecond <= 0 uses DefaultFailureRate.
func NewFailureLogger(logger zerolog.Logger, perSecond int) *FailureLogger {
	if perSecond <= 0 {
		perSecond = DefaultFailureRate
	}
	return &FailureLogger{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

// Log writes f unless the rate limit is exhausted. It reports whether the
// entry was written.
func (l *FailureLogger) Log(f Failure) bool {
	if l == nil {
		return false
	}
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return false
	}
	ev := l.logger.Warn().
		Int("worker", f.Worker).
		Str("request", f.Request).
		Str("outcome", f.Outcome)
	if f.Status > 0 {
		ev = ev.Int("status", f.Status)
	}
	if len(f.Checks) > 0 {
		ev = ev.Strs("failed_checks", f.Checks)
	}
	if f.Err != nil {
		ev = ev.Err(f.Err)
	}
	ev.Msg("request failed")
	return true
}

// Suppressed is the number of entries dropped by the rate limit.
func (l *FailureLogger) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}
