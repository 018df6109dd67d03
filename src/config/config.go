package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/anthropic"
	APIKeyPathEnvVar  = "ANTHROPIC_API_KEY_FILE"
	AltEnvFileEnvVar  = "DENTAL_INTAKE_OCR"

	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"

	DefaultAnthropicModel = "claude-3-haiku-20240307"
	DefaultListenAddr     = "127.0.0.1:8501"
	DefaultScreenshotPath = "screenshot.png"
	DefaultHotkey         = "Ctrl+Alt+A"
	DefaultMaxTokens      = 1024
	DefaultInitialDelay   = 10 * time.Second
	DefaultInterval       = 60 * time.Second
)

type LoadOptions struct {
	APIKeyPathOverride string
	ListenAddrOverride string
}

type Config struct {
	Provider          string
	APIKey            string
	APIKeyPath        string
	BaseURL           string
	Model             string
	MaxTokens         int
	ListenAddr        string
	ScreenshotPath    string
	InitialDelay      time.Duration
	Interval          time.Duration
	ResetFirstRun     bool
	ExtractDeadline   time.Duration
	EnableFileLogging bool
	EnableTelemetry   bool
	EnableTray        bool
	Hotkey            string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) otherwise the file named by DENTAL_INTAKE_OCR
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	provider := resolveProvider(os.Getenv("PROVIDER"))
	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		Provider:          provider,
		APIKeyPath:        apiKeyPath,
		Model:             resolveModel(provider, os.Getenv("MODEL")),
		MaxTokens:         positiveInt("MAX_TOKENS", DefaultMaxTokens),
		ListenAddr:        getEnvWithDefault("LISTEN_ADDR", DefaultListenAddr),
		ScreenshotPath:    getEnvWithDefault("SCREENSHOT_PATH", DefaultScreenshotPath),
		InitialDelay:      seconds("INITIAL_DELAY_SEC", DefaultInitialDelay),
		Interval:          seconds("ANALYSIS_INTERVAL_SEC", DefaultInterval),
		ResetFirstRun:     boolEnv("RESET_INITIAL_DELAY_ON_START", false),
		ExtractDeadline:   seconds("EXTRACT_DEADLINE_SEC", 0),
		EnableFileLogging: boolEnv("ENABLE_FILE_LOGGING", false),
		EnableTelemetry:   boolEnv("ENABLE_TELEMETRY", false),
		EnableTray:        boolEnv("ENABLE_TRAY", true),
		Hotkey:            getEnvWithDefault("HOTKEY", DefaultHotkey),
	}

	switch provider {
	case ProviderOpenRouter:
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
		cfg.BaseURL = os.Getenv("OPENROUTER_BASE_URL")
	default:
		cfg.APIKey = resolveAPIKey(apiKeyPath)
		cfg.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	}

	if override := strings.TrimSpace(opts.ListenAddrOverride); override != "" {
		cfg.ListenAddr = override
	}

	// A missing key is not an error here: the first remote call reports it.
	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(AltEnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
}

func resolveProvider(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ProviderOpenRouter:
		return ProviderOpenRouter
	default:
		return ProviderAnthropic
	}
}

func resolveModel(provider, value string) string {
	if model := strings.TrimSpace(value); model != "" {
		return model
	}
	if provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	// OpenRouter has no sensible default vision model; the client reports it.
	return ""
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// seconds reads a whole number of seconds. Zero is accepted, negatives fall back.
func seconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
