package config

import (
	"os"
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		wantPanic bool
	}{
		{
			name:      "variable set",
			key:       "TEST_VAR",
			value:     "test_value",
			shouldSet: true,
			wantPanic: false,
		},
		{
			name:      "variable not set",
			key:       "TEST_VAR_MISSING",
			shouldSet: false,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.value)
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		shouldSet bool
		def       time.Duration
		expected  time.Duration
		wantPanic bool
	}{
		{
			name:      "valid duration",
			key:       "TEST_DURATION",
			value:     "45s",
			shouldSet: true,
			def:       time.Minute,
			expected:  45 * time.Second,
		},
		{
			name:     "unset falls back to default",
			key:      "TEST_DURATION_MISSING",
			def:      time.Minute,
			expected: time.Minute,
		},
		{
			name:      "invalid duration",
			key:       "TEST_DURATION_INVALID",
			value:     "soon",
			shouldSet: true,
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.value)
			}

			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("mustDuration() should have panicked")
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if !tt.wantPanic && result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "comma separated with spaces",
			input:    "/api/history, /api/generate ,/api/media",
			expected: []string{"/api/history", "/api/generate", "/api/media"},
		},
		{
			name:     "single value",
			input:    "generation",
			expected: []string{"generation"},
		},
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "only separators",
			input:    " , ,",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndTrim(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("splitAndTrim(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GATEWAY_REGISTRY_FILE", "services.yaml")
	t.Setenv("GATEWAY_JWT_SECRET", "test-secret")
	t.Setenv("GATEWAY_REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWAY_REDIS_PASSWORD_REQUIRED", "false")

	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.HealthFailureThreshold != 3 || cfg.HealthSuccessThreshold != 2 {
		t.Errorf("health thresholds = %d/%d, want 3/2",
			cfg.HealthFailureThreshold, cfg.HealthSuccessThreshold)
	}
	if rl := cfg.RateLimits[CategoryAnonymous]; rl.Limit != 100 || rl.Window != 15*time.Minute {
		t.Errorf("anonymous rate limit = %d/%v, want 100/15m", rl.Limit, rl.Window)
	}
	if rl := cfg.RateLimits[CategoryAuth]; rl.Limit != 10 {
		t.Errorf("auth rate limit = %d, want 10", rl.Limit)
	}
	if len(cfg.RequiredAuthPrefixes) == 0 {
		t.Error("RequiredAuthPrefixes should have defaults")
	}
}

func TestLoadRejectsMissingRedisPassword(t *testing.T) {
	t.Setenv("GATEWAY_REGISTRY_FILE", "services.yaml")
	t.Setenv("GATEWAY_JWT_SECRET", "test-secret")
	t.Setenv("GATEWAY_REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWAY_REDIS_PASSWORD_REQUIRED", "true")
	if err := os.Unsetenv("GATEWAY_REDIS_PASSWORD"); err != nil {
		t.Fatalf("failed to unset env var: %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Load() should panic when the required Redis password is missing")
		}
	}()
	Load()
}
