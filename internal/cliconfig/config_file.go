package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	ServiceURL string `toml:"service_url"`
	AuthKey    string `toml:"auth_key"`

	HTTPTimeout string `toml:"http_timeout"`

	BatchCapacity int    `toml:"batch_capacity"`
	BatchDelay    string `toml:"batch_delay"`

	MaxRetries     int    `toml:"max_retries"`
	BaseRetryDelay string `toml:"base_retry_delay"`

	RequestWorkers int `toml:"request_workers"`

	BreakerConsecutiveFailures int    `toml:"breaker_consecutive_failures"`
	BreakerOpenTimeout         string `toml:"breaker_open_timeout"`

	RateLimitRPS   float64 `toml:"rate_limit_rps"`
	RateLimitBurst int     `toml:"rate_limit_burst"`

	StatsInterval      string `toml:"stats_interval"`
	FailureHistorySize int    `toml:"failure_history_size"`

	Compressed         *bool `toml:"compressed"`
	Suppress404Logging *bool `toml:"suppress_404_logging"`
	ConfigWatch        *bool `toml:"config_watch"`

	LogFile    string `toml:"log_file"`
	LogMaxSize int    `toml:"log_max_size_mb"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path:
// ~/.syncdispatch/config.toml, or empty if the user home directory cannot
// be determined.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".syncdispatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)

	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("batch-delay", fc.BatchDelay, &cfg.BatchDelay); err != nil {
		return err
	}
	if err := s.setDuration("base-retry-delay", fc.BaseRetryDelay, &cfg.BaseRetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("breaker-open-timeout", fc.BreakerOpenTimeout, &cfg.BreakerOpenTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stats-interval", fc.StatsInterval, &cfg.StatsInterval); err != nil {
		return err
	}

	s.setInt("batch-capacity", fc.BatchCapacity, &cfg.BatchCapacity)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("request-workers", fc.RequestWorkers, &cfg.RequestWorkers)
	s.setInt("breaker-consecutive-failures", fc.BreakerConsecutiveFailures, &cfg.BreakerConsecutiveFailures)
	s.setInt("rate-limit-burst", fc.RateLimitBurst, &cfg.RateLimitBurst)
	s.setInt("failure-history-size", fc.FailureHistorySize, &cfg.FailureHistorySize)
	s.setInt("log-max-size-mb", fc.LogMaxSize, &cfg.LogMaxSize)

	s.setFloat("rate-limit-rps", fc.RateLimitRPS, &cfg.RateLimitRPS)

	s.setBool("compressed", fc.Compressed, &cfg.Compressed)
	s.setBool("suppress-404-logging", fc.Suppress404Logging, &cfg.Suppress404Logging)
	s.setBool("config-watch", fc.ConfigWatch, &cfg.ConfigWatch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
