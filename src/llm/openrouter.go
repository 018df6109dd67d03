package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClient talks to any OpenAI-compatible chat completions endpoint,
// OpenRouter by default, passing the screenshot as a data URL.
type OpenRouterClient struct {
	apiKey    string
	model     string
	maxTokens int
	client    *openai.Client
}

func NewOpenRouterClient(cfg Config) *OpenRouterClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = defaultOpenRouterURL
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}
	oc.HTTPClient = &http.Client{Transport: attributionTransport{base: base}}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenRouterClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    openai.NewClientWithConfig(oc),
	}
}

func (c *OpenRouterClient) Extract(ctx context.Context, imageData []byte) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if c.model == "" {
		return "", errors.New("model is required")
	}
	if len(imageData) == 0 {
		return "", ErrEmptyImage
	}

	ctx, span := tracer.Start(ctx, "llm.extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", ProviderOpenRouter),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.image_bytes", len(imageData)),
	)

	imageURL := fmt.Sprintf("data:%s;base64,%s", mediaTypePNG, base64.StdEncoding.EncodeToString(imageData))
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: ExtractionPrompt,
					},
				},
			},
		},
	})
	if err != nil {
		err = translateOpenAIError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Type: apiErr.Type, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return fmt.Errorf("API request failed: %w", err)
}

// attributionTransport adds the headers OpenRouter uses to attribute traffic.
type attributionTransport struct {
	base http.RoundTripper
}

func (t attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("HTTP-Referer", "https://github.com/dental-intake-ocr")
	r.Header.Set("X-Title", "Dental Intake OCR")
	return t.base.RoundTrip(r)
}
