package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test_api_key")
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("MODEL", "test_model")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY", "Ctrl+Shift+T")
	t.Setenv("INITIAL_DELAY_SEC", "3")
	t.Setenv("ANALYSIS_INTERVAL_SEC", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Provider != ProviderAnthropic {
		t.Errorf("Expected provider %q, got %q", ProviderAnthropic, cfg.Provider)
	}
	if cfg.APIKey != "test_api_key" {
		t.Errorf("Expected APIKey to be 'test_api_key', got '%s'", cfg.APIKey)
	}
	if cfg.Model != "test_model" {
		t.Errorf("Expected Model to be 'test_model', got '%s'", cfg.Model)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true, got %v", cfg.EnableFileLogging)
	}
	if cfg.Hotkey != "Ctrl+Shift+T" {
		t.Errorf("Expected Hotkey to be 'Ctrl+Shift+T', got '%s'", cfg.Hotkey)
	}
	if cfg.InitialDelay != 3*time.Second {
		t.Errorf("Expected InitialDelay 3s, got %v", cfg.InitialDelay)
	}
	if cfg.Interval != 30*time.Second {
		t.Errorf("Expected Interval 30s, got %v", cfg.Interval)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MODEL", "PROVIDER", "INITIAL_DELAY_SEC", "ANALYSIS_INTERVAL_SEC",
		"SCREENSHOT_PATH", "LISTEN_ADDR", "MAX_TOKENS", "RESET_INITIAL_DELAY_ON_START", "EXTRACT_DEADLINE_SEC"} {
		t.Setenv(key, "")
	}
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "" {
		t.Errorf("Expected empty APIKey, got %q", cfg.APIKey)
	}
	if cfg.Model != DefaultAnthropicModel {
		t.Errorf("Expected default model, got %q", cfg.Model)
	}
	if cfg.InitialDelay != 10*time.Second || cfg.Interval != 60*time.Second {
		t.Errorf("Expected 10s/60s cadence, got %v/%v", cfg.InitialDelay, cfg.Interval)
	}
	if cfg.ScreenshotPath != "screenshot.png" {
		t.Errorf("Expected screenshot.png, got %q", cfg.ScreenshotPath)
	}
	if cfg.MaxTokens != 1024 {
		t.Errorf("Expected MaxTokens 1024, got %d", cfg.MaxTokens)
	}
	if cfg.ResetFirstRun {
		t.Error("Expected ResetFirstRun to default to false")
	}
	if cfg.ExtractDeadline != 0 {
		t.Errorf("Expected no extract deadline, got %v", cfg.ExtractDeadline)
	}
}

func TestAPIKeyFileTakesPrecedence(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("  file_key\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANTHROPIC_API_KEY", "env_key")
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "other"))

	cfg, err := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyFile, ListenAddrOverride: "127.0.0.1:9999"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "file_key" {
		t.Errorf("Expected key from file, got %q", cfg.APIKey)
	}
	if cfg.APIKeyPath != keyFile {
		t.Errorf("Expected key path %q, got %q", keyFile, cfg.APIKeyPath)
	}
	if cfg.ListenAddr != "127.0.0.1:9999" {
		t.Errorf("Expected listen override, got %q", cfg.ListenAddr)
	}
}

func TestOpenRouterProvider(t *testing.T) {
	t.Setenv("PROVIDER", "OpenRouter")
	t.Setenv("OPENROUTER_API_KEY", "or_key")
	t.Setenv("MODEL", "")
	t.Setenv("OPENROUTER_BASE_URL", "http://localhost:1234/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != ProviderOpenRouter {
		t.Fatalf("Expected openrouter, got %q", cfg.Provider)
	}
	if cfg.APIKey != "or_key" {
		t.Errorf("Expected or_key, got %q", cfg.APIKey)
	}
	if cfg.Model != "" {
		t.Errorf("Expected no default model for openrouter, got %q", cfg.Model)
	}
	if cfg.BaseURL != "http://localhost:1234/v1" {
		t.Errorf("Unexpected base URL: %q", cfg.BaseURL)
	}
}

func TestInvalidDurationsFallBack(t *testing.T) {
	t.Setenv("INITIAL_DELAY_SEC", "-4")
	t.Setenv("ANALYSIS_INTERVAL_SEC", "soon")
	t.Setenv("RESET_INITIAL_DELAY_ON_START", "yes-please")

	cfg, _ := Load()
	if cfg.InitialDelay != DefaultInitialDelay {
		t.Errorf("Expected default initial delay, got %v", cfg.InitialDelay)
	}
	if cfg.Interval != DefaultInterval {
		t.Errorf("Expected default interval, got %v", cfg.Interval)
	}
	if cfg.ResetFirstRun {
		t.Error("Expected unparsable bool to fall back to false")
	}
}
