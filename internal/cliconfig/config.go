package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bft-labs/syncdispatch/internal/domain"
)

// DefaultServiceURL is the default endpoint bulk-pushed documents are sent
// to.
const DefaultServiceURL = "https://sync.example.com"

// Config holds CLI configuration for the syncdispatch daemon: tunables for
// the Batcher/RetryingRequest dispatch core plus the ambient concerns
// (HTTP client, circuit breaker, rate limiting, stats reporting) layered
// around it.
type Config struct {
	ServiceURL string
	AuthKey    string

	HTTPTimeout time.Duration

	// BatchCapacity and BatchDelay configure the Batcher grouping documents
	// before each push.
	BatchCapacity int
	BatchDelay    time.Duration

	// MaxRetries and BaseRetryDelay configure RetryingRequest's exponential
	// backoff.
	MaxRetries     int
	BaseRetryDelay time.Duration

	// RequestWorkers sizes the request executor pool. Must be at least 2;
	// Validate silently raises lower values rather than erroring, mirroring
	// executor.NewRequestExecutor's own clamp.
	RequestWorkers int

	// BreakerConsecutiveFailures and BreakerOpenTimeout configure the
	// circuit breaker wrapping the transport.
	BreakerConsecutiveFailures int
	BreakerOpenTimeout         time.Duration

	// RateLimitRPS and RateLimitBurst throttle the request executor.
	// RateLimitRPS <= 0 disables throttling.
	RateLimitRPS   float64
	RateLimitBurst int

	// StatsInterval schedules periodic counter logging. Zero disables it.
	StatsInterval time.Duration

	// FailureHistorySize bounds the in-memory ring of recent terminal
	// failures kept for operators.
	FailureHistorySize int

	Compressed         bool
	Suppress404Logging bool

	// ConfigWatch enables hot-reload from the config file via
	// plugins/configwatcher of ServiceURL, MaxRetries, BaseRetryDelay,
	// Compressed and Suppress404Logging; other fields keep their startup
	// values.
	ConfigWatch bool

	LogFile    string
	LogMaxSize int // megabytes, for lumberjack rotation
}

// DefaultConfig returns a Config with the defaults used across the dispatch
// core's design notes: capacity 100, 1s delay, 3 retries at a 4s base.
func DefaultConfig() Config {
	return Config{
		ServiceURL:                 DefaultServiceURL,
		AuthKey:                    os.Getenv("SYNCDISPATCH_AUTH_KEY"),
		HTTPTimeout:                15 * time.Second,
		BatchCapacity:              100,
		BatchDelay:                 time.Second,
		MaxRetries:                 3,
		BaseRetryDelay:             4 * time.Second,
		RequestWorkers:             4,
		BreakerConsecutiveFailures: 5,
		BreakerOpenTimeout:         30 * time.Second,
		RateLimitRPS:               50,
		RateLimitBurst:             100,
		StatsInterval:              time.Minute,
		FailureHistorySize:         200,
		LogMaxSize:                 100,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if len(c.ServiceURL) > 0 && c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}

	if c.BatchCapacity <= 0 {
		return fmt.Errorf("%w: batch capacity must be positive", domain.ErrInvalidConfig)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("%w: batch delay must not be negative", domain.ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", domain.ErrInvalidConfig)
	}
	if c.BaseRetryDelay <= 0 {
		return fmt.Errorf("%w: base retry delay must be positive", domain.ErrInvalidConfig)
	}
	if c.RequestWorkers < 2 {
		c.RequestWorkers = 2
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: http timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.BreakerConsecutiveFailures <= 0 {
		c.BreakerConsecutiveFailures = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	if c.FailureHistorySize <= 0 {
		c.FailureHistorySize = 200
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
