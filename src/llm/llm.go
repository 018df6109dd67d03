package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
)

const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"

	mediaTypePNG = "image/png"
)

var (
	// ErrMissingAPIKey is returned by the first remote call when no credential is configured.
	ErrMissingAPIKey = errors.New("API key is required")
	// ErrEmptyResponse is returned when the API answers without any content block.
	ErrEmptyResponse = errors.New("no content in API response")
	// ErrEmptyImage is returned when Extract is called without image data.
	ErrEmptyImage = errors.New("image data is empty")
)

var tracer = otel.Tracer("dental-intake-ocr/llm")

// ExtractionPrompt asks the model for the six intake fields as JSON, with "N/A"
// for anything it cannot read.
const ExtractionPrompt = `You will be extracting patient information from a screenshot. Use OCR (Optical Character Recognition) to read all of the text in the image, then look through that text for the following details:

- Patient Name
- Patient Age
- Gender
- Patient Contact Number
- Appointment Date
- Reason for Visit

If any of these cannot be found, use "N/A" as its value.

Return what you found as JSON with exactly this structure:

{
"name": patient_name,
"age": patient_age,
"gender": patient_gender,
"contact": patient_contact,
"appointment_date": appointment_date,
"reason_for_visit": reason_for_visit
}

Double check the spelling of names and numbers, and return the final result as valid JSON in the format above.`

// Client sends one PNG screenshot to a multimodal model and returns the raw
// text of the first response segment. The text is never parsed here.
type Client interface {
	Extract(ctx context.Context, imageData []byte) (string, error)
}

type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// APIError is a non-success answer from the remote API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// IsAuth reports whether the API rejected the credential.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden ||
		e.Type == "authentication_error" ||
		e.Type == "permission_error"
}

// IsAuthError reports whether err is a missing or rejected credential.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// New returns the client for cfg.Provider.
func New(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	case ProviderOpenRouter:
		return NewOpenRouterClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
