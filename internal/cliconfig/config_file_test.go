package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				ServiceURL:     "http://test.example.com",
				AuthKey:        "file-secret",
				BatchDelay:     "5m",
				MaxRetries:     6,
				RateLimitRPS:   0.8,
				RateLimitBurst: 1000,
				Compressed:     &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				ServiceURL:     "http://test.example.com",
				AuthKey:        "file-secret",
				BatchDelay:     5 * time.Minute,
				MaxRetries:     6,
				RateLimitRPS:   0.8,
				RateLimitBurst: 1000,
				Compressed:     true,
			},
			wantErr: false,
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				ServiceURL: "http://config.example.com",
				AuthKey:    "config-secret",
			},
			changed: map[string]bool{"service-url": true},
			initial: Config{
				ServiceURL: "http://flag.example.com",
				AuthKey:    "flag-secret",
			},
			expected: Config{
				ServiceURL: "http://flag.example.com", // unchanged because flag was set
				AuthKey:    "config-secret",
			},
			wantErr: false,
		},
		{
			name: "handles all field types correctly",
			fileConfig: FileConfig{
				ServiceURL:                 "http://example.com",
				AuthKey:                    "secret",
				HTTPTimeout:                "30s",
				BatchCapacity:              50,
				BatchDelay:                 "2s",
				MaxRetries:                 7,
				BaseRetryDelay:             "4s",
				RequestWorkers:             8,
				BreakerConsecutiveFailures: 9,
				BreakerOpenTimeout:         "1m",
				RateLimitRPS:               12.5,
				RateLimitBurst:             20,
				StatsInterval:              "5m",
				FailureHistorySize:         300,
				Compressed:                 &trueVal,
				Suppress404Logging:         &falseVal,
				ConfigWatch:                &trueVal,
				LogFile:                    "/var/log/syncdispatch.log",
				LogMaxSize:                 50,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				ServiceURL:                 "http://example.com",
				AuthKey:                    "secret",
				HTTPTimeout:                30 * time.Second,
				BatchCapacity:              50,
				BatchDelay:                 2 * time.Second,
				MaxRetries:                 7,
				BaseRetryDelay:             4 * time.Second,
				RequestWorkers:             8,
				BreakerConsecutiveFailures: 9,
				BreakerOpenTimeout:         time.Minute,
				RateLimitRPS:               12.5,
				RateLimitBurst:             20,
				StatsInterval:              5 * time.Minute,
				FailureHistorySize:         300,
				Compressed:                 true,
				Suppress404Logging:         false,
				ConfigWatch:                true,
				LogFile:                    "/var/log/syncdispatch.log",
				LogMaxSize:                 50,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}

			if cfg.ServiceURL != tt.expected.ServiceURL {
				t.Errorf("ServiceURL = %v, want %v", cfg.ServiceURL, tt.expected.ServiceURL)
			}
			if cfg.AuthKey != tt.expected.AuthKey {
				t.Errorf("AuthKey = %v, want %v", cfg.AuthKey, tt.expected.AuthKey)
			}
			if cfg.BatchDelay != tt.expected.BatchDelay {
				t.Errorf("BatchDelay = %v, want %v", cfg.BatchDelay, tt.expected.BatchDelay)
			}
			if cfg.MaxRetries != tt.expected.MaxRetries {
				t.Errorf("MaxRetries = %v, want %v", cfg.MaxRetries, tt.expected.MaxRetries)
			}
			if cfg.RateLimitRPS != tt.expected.RateLimitRPS {
				t.Errorf("RateLimitRPS = %v, want %v", cfg.RateLimitRPS, tt.expected.RateLimitRPS)
			}
			if cfg.RateLimitBurst != tt.expected.RateLimitBurst {
				t.Errorf("RateLimitBurst = %v, want %v", cfg.RateLimitBurst, tt.expected.RateLimitBurst)
			}
			if cfg.Compressed != tt.expected.Compressed {
				t.Errorf("Compressed = %v, want %v", cfg.Compressed, tt.expected.Compressed)
			}
			if tt.expected.HTTPTimeout != 0 && cfg.HTTPTimeout != tt.expected.HTTPTimeout {
				t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, tt.expected.HTTPTimeout)
			}
			if tt.expected.BatchCapacity != 0 && cfg.BatchCapacity != tt.expected.BatchCapacity {
				t.Errorf("BatchCapacity = %v, want %v", cfg.BatchCapacity, tt.expected.BatchCapacity)
			}
			if tt.expected.RequestWorkers != 0 && cfg.RequestWorkers != tt.expected.RequestWorkers {
				t.Errorf("RequestWorkers = %v, want %v", cfg.RequestWorkers, tt.expected.RequestWorkers)
			}
			if tt.expected.BreakerConsecutiveFailures != 0 && cfg.BreakerConsecutiveFailures != tt.expected.BreakerConsecutiveFailures {
				t.Errorf("BreakerConsecutiveFailures = %v, want %v", cfg.BreakerConsecutiveFailures, tt.expected.BreakerConsecutiveFailures)
			}
			if tt.expected.BreakerOpenTimeout != 0 && cfg.BreakerOpenTimeout != tt.expected.BreakerOpenTimeout {
				t.Errorf("BreakerOpenTimeout = %v, want %v", cfg.BreakerOpenTimeout, tt.expected.BreakerOpenTimeout)
			}
			if tt.expected.StatsInterval != 0 && cfg.StatsInterval != tt.expected.StatsInterval {
				t.Errorf("StatsInterval = %v, want %v", cfg.StatsInterval, tt.expected.StatsInterval)
			}
			if tt.expected.FailureHistorySize != 0 && cfg.FailureHistorySize != tt.expected.FailureHistorySize {
				t.Errorf("FailureHistorySize = %v, want %v", cfg.FailureHistorySize, tt.expected.FailureHistorySize)
			}
			if tt.expected.LogFile != "" && cfg.LogFile != tt.expected.LogFile {
				t.Errorf("LogFile = %v, want %v", cfg.LogFile, tt.expected.LogFile)
			}
			if tt.expected.LogMaxSize != 0 && cfg.LogMaxSize != tt.expected.LogMaxSize {
				t.Errorf("LogMaxSize = %v, want %v", cfg.LogMaxSize, tt.expected.LogMaxSize)
			}
			if cfg.Suppress404Logging != tt.expected.Suppress404Logging {
				t.Errorf("Suppress404Logging = %v, want %v", cfg.Suppress404Logging, tt.expected.Suppress404Logging)
			}
			if cfg.ConfigWatch != tt.expected.ConfigWatch {
				t.Errorf("ConfigWatch = %v, want %v", cfg.ConfigWatch, tt.expected.ConfigWatch)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
service_url = "http://test.example.com"
auth_key = "file-secret"
batch_delay = "2s"
max_retries = 5
rate_limit_rps = 10.5
compressed = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.ServiceURL != "http://test.example.com" {
		t.Errorf("ServiceURL = %v, want http://test.example.com", fc.ServiceURL)
	}
	if fc.AuthKey != "file-secret" {
		t.Errorf("AuthKey = %v, want file-secret", fc.AuthKey)
	}
	if fc.BatchDelay != "2s" {
		t.Errorf("BatchDelay = %v, want 2s", fc.BatchDelay)
	}
	if fc.MaxRetries != 5 {
		t.Errorf("MaxRetries = %v, want 5", fc.MaxRetries)
	}
	if fc.RateLimitRPS != 10.5 {
		t.Errorf("RateLimitRPS = %v, want 10.5", fc.RateLimitRPS)
	}
	if fc.Compressed == nil || *fc.Compressed != true {
		t.Errorf("Compressed = %v, want true", fc.Compressed)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
service_url = "/test"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".syncdispatch") {
		t.Errorf("DefaultConfigPath() = %v, should contain .syncdispatch", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
