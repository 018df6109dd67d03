package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dental-intake-ocr/src/config"
	"dental-intake-ocr/src/llm"
	"dental-intake-ocr/src/logutil"
	"dental-intake-ocr/src/runtimeinit"
	"dental-intake-ocr/src/screenshot"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	filePath   string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
	timeout    time.Duration
}

// env carries the process streams and the pluggable pieces of a run.
type env struct {
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	newClient func(*config.Config) (llm.Client, error)
	capture   func() ([]byte, error)
}

func defaultEnv() env {
	return env{
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		newClient: runtimeinit.NewClient,
		capture:   screenshot.CapturePNG,
	}
}

func main() {
	if err := runWithArgs(normalizeLegacyArgs(os.Args), defaultEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string, e env) error {
	if len(args) == 0 {
		args = []string{"intake-extract"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, e)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, e env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "intake-extract",
		Short:         "Extract patient intake fields from a screenshot once",
		Long:          "Sends one PNG to the configured model with the intake extraction prompt and prints the raw answer. Without --file all active displays are captured as one image.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, e)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin, omit to capture the screen)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Give up on the request after this long")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, e env) error {
	// Logging goes first so config loading stays quiet.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(e.stderr)
		fmt.Fprintf(e.stderr, "[verbose] Starting extraction\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.verbose {
		fmt.Fprintf(e.stderr, "[verbose] Config loaded: Provider=%s Model=%s\n", cfg.Provider, cfg.Model)
		fmt.Fprintf(e.stderr, "[verbose] Effective API key path: %s\n", cfg.APIKeyPath)
		fmt.Fprintf(e.stderr, "[verbose] API key: %s\n", logutil.RedactKey(cfg.APIKey))
	}

	if cfg.APIKey == "" {
		return fmt.Errorf("API key not found. Checked key file %s and the environment", cfg.APIKeyPath)
	}

	client, err := e.newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create extraction client: %w", err)
	}

	imageData, source, err := readInput(opts.filePath, e, opts.verbose)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}
	return performExtraction(ctx, client, imageData, source, opts.jsonOutput, opts.verbose, e)
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "api-key-path", "timeout"} {
			single := "-" + name
			switch {
			case arg == single:
				normalized[i] = "-" + single
			case strings.HasPrefix(arg, single+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

func readInput(filePath string, e env, verbose bool) ([]byte, string, error) {
	var imageData []byte
	var err error
	source := filePath

	switch filePath {
	case "":
		if verbose {
			fmt.Fprintf(e.stderr, "[verbose] Capturing all active displays\n")
		}
		source = "screen"
		imageData, err = e.capture()
		if err != nil {
			return nil, "", fmt.Errorf("failed to capture screen: %w", err)
		}
	case "-":
		if verbose {
			fmt.Fprintf(e.stderr, "[verbose] Reading image from stdin\n")
		}
		imageData, err = io.ReadAll(io.LimitReader(e.stdin, maxFileSize+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read from stdin: %w", err)
		}
	default:
		if verbose {
			fmt.Fprintf(e.stderr, "[verbose] Reading image from file: %s\n", filePath)
		}
		imageData, err = os.ReadFile(filePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if err := validatePNG(imageData); err != nil {
		return nil, "", err
	}
	if verbose {
		fmt.Fprintf(e.stderr, "[verbose] Read %d bytes, PNG validation passed\n", len(imageData))
	}
	return imageData, source, nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func performExtraction(ctx context.Context, client llm.Client, imageData []byte, source string, jsonOutput, verbose bool, e env) error {
	startTime := time.Now()
	text, err := client.Extract(ctx, imageData)
	elapsed := time.Since(startTime)

	if err != nil {
		if verbose {
			fmt.Fprintf(e.stderr, "[verbose] Extraction failed after %v: %v\n", elapsed, err)
		}
		if llm.IsAuthError(err) {
			return fmt.Errorf("authentication failed, check the API key: %w", err)
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if verbose {
		fmt.Fprintf(e.stderr, "[verbose] Extraction completed in %v, %d characters\n", elapsed, len(text))
	}

	return outputResult(e.stdout, text, source, elapsed, jsonOutput)
}

type ExtractionResult struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(out io.Writer, text, source string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(out, text)
		return err
	}

	result := ExtractionResult{
		Text:      text,
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(text),
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
