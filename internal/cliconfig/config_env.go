package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (SYNCDISPATCH_*). It respects flags that have been explicitly set
// (changed map). Returns an error if any environment variable has an
// invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", os.Getenv("SYNCDISPATCH_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("SYNCDISPATCH_AUTH_KEY"), &cfg.AuthKey)
	s.setString("log-file", os.Getenv("SYNCDISPATCH_LOG_FILE"), &cfg.LogFile)

	if err := s.setDuration("http-timeout", os.Getenv("SYNCDISPATCH_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("batch-delay", os.Getenv("SYNCDISPATCH_BATCH_DELAY"), &cfg.BatchDelay); err != nil {
		return err
	}
	if err := s.setDuration("base-retry-delay", os.Getenv("SYNCDISPATCH_BASE_RETRY_DELAY"), &cfg.BaseRetryDelay); err != nil {
		return err
	}
	if err := s.setDuration("breaker-open-timeout", os.Getenv("SYNCDISPATCH_BREAKER_OPEN_TIMEOUT"), &cfg.BreakerOpenTimeout); err != nil {
		return err
	}
	if err := s.setDuration("stats-interval", os.Getenv("SYNCDISPATCH_STATS_INTERVAL"), &cfg.StatsInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-capacity", os.Getenv("SYNCDISPATCH_BATCH_CAPACITY"), &cfg.BatchCapacity); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("SYNCDISPATCH_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("request-workers", os.Getenv("SYNCDISPATCH_REQUEST_WORKERS"), &cfg.RequestWorkers); err != nil {
		return err
	}
	if err := s.setIntFromString("breaker-consecutive-failures", os.Getenv("SYNCDISPATCH_BREAKER_CONSECUTIVE_FAILURES"), &cfg.BreakerConsecutiveFailures); err != nil {
		return err
	}
	if err := s.setIntFromString("rate-limit-burst", os.Getenv("SYNCDISPATCH_RATE_LIMIT_BURST"), &cfg.RateLimitBurst); err != nil {
		return err
	}
	if err := s.setIntFromString("failure-history-size", os.Getenv("SYNCDISPATCH_FAILURE_HISTORY_SIZE"), &cfg.FailureHistorySize); err != nil {
		return err
	}

	if err := s.setFloatFromString("rate-limit-rps", os.Getenv("SYNCDISPATCH_RATE_LIMIT_RPS"), &cfg.RateLimitRPS); err != nil {
		return err
	}

	s.setBoolFromString("compressed", os.Getenv("SYNCDISPATCH_COMPRESSED"), &cfg.Compressed)
	s.setBoolFromString("suppress-404-logging", os.Getenv("SYNCDISPATCH_SUPPRESS_404_LOGGING"), &cfg.Suppress404Logging)
	s.setBoolFromString("config-watch", os.Getenv("SYNCDISPATCH_CONFIG_WATCH"), &cfg.ConfigWatch)

	return nil
}
