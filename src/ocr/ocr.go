package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"dental-intake-ocr/src/llm"
	"dental-intake-ocr/src/logutil"
	"dental-intake-ocr/src/screenshot"
)

// Stage names the step of a capture cycle that failed.
type Stage string

const (
	StageCapture Stage = "capture"
	StageFile    Stage = "file"
	StageRemote  Stage = "remote"
)

// CycleError wraps a failure with the stage it happened in.
type CycleError struct {
	Stage Stage
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// StageOf returns the failed stage of err, or "" when err is not a CycleError.
func StageOf(err error) Stage {
	var ce *CycleError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	return ""
}

// CaptureFunc returns one PNG-encoded full-screen capture.
type CaptureFunc func() ([]byte, error)

// Extractor runs one capture cycle: screen → fixed file → read back → remote extraction.
type Extractor struct {
	Path    string
	Client  llm.Client
	Capture CaptureFunc
}

func New(path string, client llm.Client) *Extractor {
	return &Extractor{Path: path, Client: client, Capture: screenshot.CapturePNG}
}

// Run performs one cycle and returns the raw extraction text.
func (e *Extractor) Run(ctx context.Context) (string, error) {
	capture := e.Capture
	if capture == nil {
		capture = screenshot.CapturePNG
	}

	imageData, err := capture()
	if err != nil {
		return "", &CycleError{Stage: StageCapture, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := screenshot.WriteFile(e.Path, imageData); err != nil {
		return "", &CycleError{Stage: StageFile, Err: err}
	}
	stored, err := os.ReadFile(e.Path)
	if err != nil {
		return "", &CycleError{Stage: StageFile, Err: fmt.Errorf("failed to read back %s: %w", e.Path, err)}
	}
	log.Printf("ocr: captured %d bytes to %s", len(stored), e.Path)

	return e.RecognizeImage(ctx, stored)
}

// RecognizeImage sends already-encoded PNG data for extraction.
func (e *Extractor) RecognizeImage(ctx context.Context, imageData []byte) (string, error) {
	if e.Client == nil {
		return "", &CycleError{Stage: StageRemote, Err: errors.New("extraction client not initialized")}
	}
	text, err := e.Client.Extract(ctx, imageData)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &CycleError{Stage: StageRemote, Err: err}
	}
	log.Printf("ocr: extraction result: %s", logutil.Sanitize(text, 2000))
	return text, nil
}
