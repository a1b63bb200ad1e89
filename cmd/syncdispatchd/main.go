package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	adapterhttp "github.com/bft-labs/syncdispatch/internal/adapters/http"
	"github.com/bft-labs/syncdispatch/internal/cliconfig"
	"github.com/bft-labs/syncdispatch/pkg/executor"
	"github.com/bft-labs/syncdispatch/pkg/log"
	"github.com/bft-labs/syncdispatch/internal/replicator"
	"github.com/bft-labs/syncdispatch/pkg/transport"
	"github.com/bft-labs/syncdispatch/plugins/configwatcher"
)

const helpDescription = `
Push documents to a remote sync service without ever blocking the caller on
a slow or flaky network: syncdispatchd batches enqueued documents and
delivers each group through a circuit-broken, retrying HTTP client.

Highlights:
  - Groups documents by a size/time window before each delivery attempt.
  - Retries transient failures with exponential backoff, tripping a circuit
    breaker instead of hammering a downstream outage.
  - Configure via file, env, or flags, with optional hot-reload of the live
    retry/compression tunables.

Docs: https://docs.example.com/syncdispatch
`

var exampleUsage = strings.TrimSpace(`
  syncdispatchd --service-url https://sync.example.com --auth-key <api-key>
  syncdispatchd --config $HOME/.syncdispatch/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// bearerAuth attaches the configured API key as a bearer token to every
// outbound attempt, including retries.
type bearerAuth struct{ key string }

func (a bearerAuth) Authenticate(_ context.Context, req *http.Request) error {
	if a.key != "" {
		req.Header.Set("Authorization", "Bearer "+a.key)
	}
	return nil
}

// authInjector wraps a Transport and stamps every request with an
// Authenticator before delegating, so callers building transport.Request
// values don't each need to know the auth scheme.
type authInjector struct {
	next transport.Transport
	auth transport.Authenticator
}

func (a authInjector) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	req.Auth = a.auth
	return a.next.Do(ctx, req)
}

func (a authInjector) IsShutdown() bool { return a.next.IsShutdown() }

func newLogger(cfg cliconfig.Config) log.Logger {
	if cfg.LogFile != "" {
		return log.NewZerologAdapterWithLogger(zerolog.New(&lumberjack.Logger{
			Filename: cfg.LogFile,
			MaxSize:  cfg.LogMaxSize,
		}).With().Timestamp().Logger())
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr}
	return log.NewZerologAdapterWithLogger(zerolog.New(w).With().Timestamp().Logger())
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "syncdispatchd",
		Short:   "Batch and deliver documents to a remote sync service",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg)

			logCfg := cfg
			if logCfg.AuthKey != "" {
				logCfg.AuthKey = "*****"
			}
			logger.Info("configuration", log.Any("config", logCfg))

			httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
			sender := adapterhttp.New(httpClient, logger)

			breaker := transport.NewBreaker(sender, transport.BreakerConfig{
				Name:                "syncdispatch",
				ConsecutiveFailures: uint32(cfg.BreakerConsecutiveFailures),
				OpenTimeout:         cfg.BreakerOpenTimeout,
			})

			var tr transport.Transport = authInjector{next: breaker, auth: bearerAuth{key: cfg.AuthKey}}

			scheduledExec := executor.NewScheduledExecutor()
			var reqExec executor.RequestExecutor = executor.NewRequestExecutor(cfg.RequestWorkers)
			if cfg.RateLimitRPS > 0 {
				reqExec = executor.NewRateLimited(reqExec, cfg.RateLimitRPS, cfg.RateLimitBurst)
			}

			repCfg := replicator.Config{
				BatchCapacity:      cfg.BatchCapacity,
				BatchDelay:         cfg.BatchDelay,
				ServiceURL:         cfg.ServiceURL,
				MaxRetries:         cfg.MaxRetries,
				BaseRetryDelay:     cfg.BaseRetryDelay,
				StatsInterval:      cfg.StatsInterval,
				FailureHistorySize: cfg.FailureHistorySize,
				Compressed:         cfg.Compressed,
				Suppress404Logging: cfg.Suppress404Logging,
			}

			rep := replicator.New(scheduledExec, reqExec, tr, logger, repCfg)

			var watcher *configwatcher.Watcher
			if cfg.ConfigWatch && cfgFile != "" {
				var mu sync.Mutex
				live := cfg
				watcher = configwatcher.New(configwatcher.DefaultConfig(cfgFile), func(fc cliconfig.FileConfig) {
					mu.Lock()
					defer mu.Unlock()
					if err := cliconfig.ApplyFileConfig(&live, fc, changed); err != nil {
						logger.Error("config reload: invalid values", log.Err(err))
						return
					}
					rep.UpdateTunables(replicator.Tunables{
						ServiceURL:         live.ServiceURL,
						MaxRetries:         live.MaxRetries,
						BaseRetryDelay:     live.BaseRetryDelay,
						Compressed:         live.Compressed,
						Suppress404Logging: live.Suppress404Logging,
					})
				}, logger)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := rep.Start(ctx); err != nil {
				return fmt.Errorf("start replicator: %w", err)
			}
			if watcher != nil {
				if err := watcher.Start(ctx); err != nil {
					logger.Error("config watcher disabled", log.Err(err))
					watcher = nil
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logger.Info("received signal, stopping")

			if watcher != nil {
				watcher.Stop()
			}
			rep.FlushOutstanding()
			if err := rep.Stop(); err != nil {
				return fmt.Errorf("stop replicator: %w", err)
			}
			scheduledExec.Shutdown()
			reqExec.Shutdown()
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.syncdispatch/config.toml)")
	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, "base URL of the remote sync service")
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "HTTP client timeout")

	root.Flags().IntVar(&cfg.BatchCapacity, "batch-capacity", cfg.BatchCapacity, "max documents grouped into one push")
	root.Flags().DurationVar(&cfg.BatchDelay, "batch-delay", cfg.BatchDelay, "max time a document waits before its group is pushed")
	root.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries after the initial attempt before giving up")
	root.Flags().DurationVar(&cfg.BaseRetryDelay, "base-retry-delay", cfg.BaseRetryDelay, "base exponential backoff delay")
	root.Flags().IntVar(&cfg.RequestWorkers, "request-workers", cfg.RequestWorkers, "size of the request executor worker pool")

	root.Flags().IntVar(&cfg.BreakerConsecutiveFailures, "breaker-consecutive-failures", cfg.BreakerConsecutiveFailures, "consecutive failures before the circuit breaker opens")
	root.Flags().DurationVar(&cfg.BreakerOpenTimeout, "breaker-open-timeout", cfg.BreakerOpenTimeout, "time the circuit breaker stays open before probing again")

	root.Flags().Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "max outbound requests per second (0 disables)")
	root.Flags().IntVar(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "burst size for the rate limiter")

	root.Flags().DurationVar(&cfg.StatsInterval, "stats-interval", cfg.StatsInterval, "interval for periodic stats logging (0 disables)")
	root.Flags().IntVar(&cfg.FailureHistorySize, "failure-history-size", cfg.FailureHistorySize, "recent failures kept for diagnostics")

	root.Flags().BoolVar(&cfg.Compressed, "compressed", cfg.Compressed, "gzip-compress push bodies")
	root.Flags().BoolVar(&cfg.Suppress404Logging, "suppress-404-logging", cfg.Suppress404Logging, "demote 404 responses to debug-level logging")
	root.Flags().BoolVar(&cfg.ConfigWatch, "config-watch", cfg.ConfigWatch, "hot-reload retry/compression tunables from the config file")

	root.Flags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file instead of stderr (rotated via lumberjack)")
	root.Flags().IntVar(&cfg.LogMaxSize, "log-max-size-mb", cfg.LogMaxSize, "max size in megabytes before a log file is rotated")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
