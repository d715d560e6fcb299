package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parley/internal/keypool"

	"google.golang.org/genai"
)

const (
	maxOutputTokens int32   = 4096
	topP            float32 = 0.95
	topK            float32 = 40

	// upstreamTimeout bounds the single synchronous generation call; the
	// relay performs no retries on top of it.
	upstreamTimeout = 2 * time.Minute
)

var (
	// ErrValidation is returned when the request payload is malformed
	ErrValidation = errors.New("invalid request")
	// ErrNoKeys is returned when no upstream API key is configured
	ErrNoKeys = errors.New("no API keys configured")
	// ErrRateLimited is returned when the upstream throttles or rejects the key
	ErrRateLimited = errors.New("upstream rate limit reached")
	// ErrUpstream is returned for any other upstream failure
	ErrUpstream = errors.New("upstream generation failed")
	// ErrSafetyBlocked is returned when the upstream blocks the response
	ErrSafetyBlocked = errors.New("response blocked by upstream safety filter")
	// ErrEmptyResponse is returned when the upstream answers without text
	ErrEmptyResponse = errors.New("upstream returned an empty response")
)

// Service defines the chat relay
type Service interface {
	Generate(ctx context.Context, req *ChatRequest) (*ChatResult, error)
}

// service implements the Service interface
type service struct {
	pool     *keypool.Pool
	clients  map[string]*genai.Client
	personas *Personas
}

// NewService builds one upstream client per pooled key. baseURL overrides
// the upstream endpoint and is normally empty outside tests.
func NewService(ctx context.Context, pool *keypool.Pool, personas *Personas, baseURL string) (Service, error) {
	httpClient := &http.Client{Timeout: upstreamTimeout}

	clients := make(map[string]*genai.Client, pool.Size())
	for _, key := range pool.Keys() {
		cc := &genai.ClientConfig{
			APIKey:     key,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if baseURL != "" {
			cc.HTTPOptions.BaseURL = baseURL
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create upstream client: %w", err)
		}
		clients[key] = client
	}

	return &service{
		pool:     pool,
		clients:  clients,
		personas: personas,
	}, nil
}

// Generate relays one conversation upstream and maps the outcome to the
// client-facing result. A single key-rotation step is the only resilience;
// no retry is attempted for any failure class.
func (s *service) Generate(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages must be a non-empty array", ErrValidation)
	}

	key, ok := s.pool.Next()
	if !ok {
		return nil, ErrNoKeys
	}

	persona := s.personas.Resolve(req.Model)

	contents := req.Messages
	if req.Image != "" {
		blob, err := parseDataURL(req.Image)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err)
		}
		contents = attachImage(contents, blob)
	}

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(persona.Temperature),
		TopP:              genai.Ptr(topP),
		TopK:              genai.Ptr(topK),
		MaxOutputTokens:   maxOutputTokens,
		CandidateCount:    1,
		SafetySettings:    permissiveSafety(),
		SystemInstruction: genai.NewContentFromText(persona.Prompt, genai.RoleUser),
	}

	resp, err := s.clients[key].Models.GenerateContent(ctx, persona.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusForbidden {
				return nil, ErrRateLimited
			}
			if apiErr.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrUpstream, apiErr.Message)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if len(resp.Candidates) != 1 {
		return nil, fmt.Errorf("%w: expected one candidate, got %d", ErrUpstream, len(resp.Candidates))
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrSafetyBlocked
	}
	text := collectText(candidate)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	return &ChatResult{
		Text:         text,
		FinishReason: string(candidate.FinishReason),
		Model:        persona.Model,
	}, nil
}

// attachImage appends the image as an inline-data part to the last
// message. The message and the slice are copied; the caller's input is
// never mutated.
func attachImage(messages []*genai.Content, blob *genai.Blob) []*genai.Content {
	out := make([]*genai.Content, len(messages))
	copy(out, messages)

	last := *out[len(out)-1]
	parts := make([]*genai.Part, len(last.Parts), len(last.Parts)+1)
	copy(parts, last.Parts)
	last.Parts = append(parts, &genai.Part{InlineData: blob})

	out[len(out)-1] = &last
	return out
}

// parseDataURL decodes a data:<mime>;base64,<payload> string into an
// inline blob.
func parseDataURL(raw string) (*genai.Blob, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, errors.New("image must be a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("image data URL has no payload")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, errors.New("image data URL must be base64-encoded")
	}
	if mimeType == "" {
		return nil, errors.New("image data URL is missing a MIME type")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.New("image payload is not valid base64")
	}
	return &genai.Blob{MIMEType: mimeType, Data: data}, nil
}

// permissiveSafety disables upstream content filtering across all four
// harm categories. This mirrors the product configuration; it is not a
// default the upstream applies on its own.
func permissiveSafety() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// collectText concatenates the text parts of a candidate.
func collectText(candidate *genai.Candidate) string {
	if candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
