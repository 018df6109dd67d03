package runtimeinit

import (
	"context"
	"fmt"
	"log"

	"dental-intake-ocr/src/analysis"
	"dental-intake-ocr/src/config"
	"dental-intake-ocr/src/llm"
	"dental-intake-ocr/src/logutil"
	"dental-intake-ocr/src/ocr"
	"dental-intake-ocr/src/telemetry"
)

const (
	version      = "0.1.0"
	telemetryDir = "logs"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// NewClient overrides the extraction client; tests use it.
	NewClient func(*config.Config) (llm.Client, error)
}

// Runtime is everything the resident process needs after startup.
type Runtime struct {
	Config    *config.Config
	Client    llm.Client
	Extractor *ocr.Extractor
	Loop      *analysis.Loop

	closers []func()
}

// Bootstrap loads configuration, sets up logging and telemetry, and builds
// the extraction client and the analysis loop. A missing API key is only
// logged; the first capture cycle then fails and stops the loop.
func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	rt := &Runtime{Config: cfg}
	if cfg.EnableTelemetry {
		cleanup, err := telemetry.Init(ctx, telemetryDir, version)
		if err != nil {
			log.Printf("telemetry disabled: %v", err)
		} else {
			rt.closers = append(rt.closers, cleanup)
		}
	}

	newClient := opts.NewClient
	if newClient == nil {
		newClient = NewClient
	}
	client, err := newClient(cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}
	rt.Client = client

	if cfg.APIKey == "" {
		log.Printf("WARNING: no API key for provider %s. Checked key file %s and the environment; analysis will stop on the first capture", cfg.Provider, cfg.APIKeyPath)
	} else {
		log.Printf("Using provider %s, model %s, key %s", cfg.Provider, cfg.Model, logutil.RedactKey(cfg.APIKey))
	}

	rt.Extractor = ocr.New(cfg.ScreenshotPath, client)
	rt.Loop = analysis.New(analysis.Options{
		Task:                 rt.Extractor.Run,
		InitialDelay:         cfg.InitialDelay,
		Interval:             cfg.Interval,
		ResetFirstRunOnStart: cfg.ResetFirstRun,
		CycleDeadline:        cfg.ExtractDeadline,
	})

	return rt, nil
}

// NewClient builds the extraction client for the configured provider.
func NewClient(cfg *config.Config) (llm.Client, error) {
	return llm.New(llm.Config{
		Provider:  cfg.Provider,
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	})
}

// Close flushes telemetry. Safe to call more than once.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
