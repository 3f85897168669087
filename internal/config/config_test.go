package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestLoad(t *testing.T) {
	required := map[string]string{
		"DATABASE_URL":   "postgres://localhost:5432/safenest_test",
		"REDIS_URL":      "redis://localhost:6379/0",
		"JWT_SECRET":     "test-secret",
		"CLASSIFIER_URL": "http://localhost:9000",
	}
	for k, v := range required {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}
	os.Setenv("CLASSIFIER_TIMEOUT_SECONDS", "3")
	defer os.Unsetenv("CLASSIFIER_TIMEOUT_SECONDS")

	cfg := Load()

	if cfg.DatabaseURL != required["DATABASE_URL"] {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.ClassifierURL != required["CLASSIFIER_URL"] {
		t.Errorf("ClassifierURL = %q", cfg.ClassifierURL)
	}
	if cfg.ClassifierTimeoutSeconds != 3 {
		t.Errorf("ClassifierTimeoutSeconds = %d, want 3", cfg.ClassifierTimeoutSeconds)
	}

	// Unset optional vars fall back to their defaults.
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want default 8080", cfg.Port)
	}
	if cfg.SMTPFrom != "alerts@safenest.app" {
		t.Errorf("SMTPFrom = %q", cfg.SMTPFrom)
	}
	if cfg.SMTPPort != "587" {
		t.Errorf("SMTPPort = %q, want default 587", cfg.SMTPPort)
	}
}
