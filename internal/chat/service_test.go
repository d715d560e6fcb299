package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"parley/internal/keypool"

	"google.golang.org/genai"
)

const successBody = `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello there"}]},"finishReason":"STOP"}]}`

// fakeUpstream is a canned stand-in for the generation API. It records
// every request's path, API key header and raw body.
type fakeUpstream struct {
	srv *httptest.Server

	mu     sync.Mutex
	calls  int
	paths  []string
	keys   []string
	bodies []string
}

func newFakeUpstream(t *testing.T, status int, body string) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls++
		f.paths = append(f.paths, r.URL.Path)
		f.keys = append(f.keys, r.Header.Get("x-goog-api-key"))
		f.bodies = append(f.bodies, string(data))
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeUpstream) lastBody(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		t.Fatal("no upstream call was recorded")
	}
	return f.bodies[len(f.bodies)-1]
}

func newTestService(t *testing.T, keys []string, baseURL string) Service {
	t.Helper()
	svc, err := NewService(context.Background(), keypool.New(keys), NewPersonas("", "", "", ""), baseURL)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func userMessage(text string) *genai.Content {
	return genai.NewContentFromText(text, genai.RoleUser)
}

func TestGenerate_Success(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	result, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Text != "Hello there" {
		t.Errorf("Expected text %q, got %q", "Hello there", result.Text)
	}
	if result.FinishReason != "STOP" {
		t.Errorf("Expected finish reason STOP, got %s", result.FinishReason)
	}
	if result.Model != defaultMuseModel {
		t.Errorf("Expected model %s, got %s", defaultMuseModel, result.Model)
	}
}

func TestGenerate_RequestShape(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	raw := fake.lastBody(t)

	// Fixed generation parameters.
	for _, want := range []string{
		`"temperature":0.9`,
		`"topP":0.95`,
		`"topK":40`,
		`"maxOutputTokens":4096`,
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("request body missing %s", want)
		}
	}

	// All four harm categories at the most permissive threshold.
	if got := strings.Count(raw, `"BLOCK_NONE"`); got != 4 {
		t.Errorf("Expected 4 BLOCK_NONE safety settings, got %d", got)
	}
	for _, category := range []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	} {
		if !strings.Contains(raw, category) {
			t.Errorf("request body missing safety category %s", category)
		}
	}

	// The persona prompt rides along as the system instruction.
	if !strings.Contains(raw, "You are Muse") {
		t.Error("request body missing the persona system instruction")
	}

	var body struct {
		Contents []struct {
			Role  string           `json:"role"`
			Parts []map[string]any `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	if len(body.Contents) != 1 || body.Contents[0].Role != "user" {
		t.Errorf("Unexpected contents: %+v", body.Contents)
	}
}

func TestGenerate_PersonaSelection(t *testing.T) {
	cases := []struct {
		name            string
		selector        string
		wantModel       string
		wantTemperature string
	}{
		{"sage", "sage", defaultSageModel, `"temperature":0.7`},
		{"default", "", defaultMuseModel, `"temperature":0.9`},
		{"unknown falls back", "bogus", defaultMuseModel, `"temperature":0.9`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeUpstream(t, http.StatusOK, successBody)
			svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

			result, err := svc.Generate(context.Background(), &ChatRequest{
				Messages: []*genai.Content{userMessage("hi")},
				Model:    tc.selector,
			})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if result.Model != tc.wantModel {
				t.Errorf("Expected model %s, got %s", tc.wantModel, result.Model)
			}
			fake.mu.Lock()
			path := fake.paths[len(fake.paths)-1]
			fake.mu.Unlock()
			if !strings.Contains(path, tc.wantModel) {
				t.Errorf("Expected request path for %s, got %s", tc.wantModel, path)
			}
			if raw := fake.lastBody(t); !strings.Contains(raw, tc.wantTemperature) {
				t.Errorf("request body missing %s", tc.wantTemperature)
			}
		})
	}
}

func TestGenerate_EmptyMessages(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	for _, messages := range [][]*genai.Content{nil, {}} {
		_, err := svc.Generate(context.Background(), &ChatRequest{Messages: messages})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Generate with %d messages = %v, want ErrValidation", len(messages), err)
		}
	}
	if fake.callCount() != 0 {
		t.Errorf("Expected no upstream calls, got %d", fake.callCount())
	}
}

func TestGenerate_NoKeys(t *testing.T) {
	svc := newTestService(t, nil, "")

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if !errors.Is(err, ErrNoKeys) {
		t.Errorf("Generate = %v, want ErrNoKeys", err)
	}
}

func TestGenerate_RotatesKeys(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1", "key-2", "key-3"}, fake.srv.URL)

	for i := 0; i < 4; i++ {
		if _, err := svc.Generate(context.Background(), &ChatRequest{
			Messages: []*genai.Content{userMessage("hi")},
		}); err != nil {
			t.Fatalf("Generate #%d failed: %v", i, err)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	want := []string{"key-1", "key-2", "key-3", "key-1"}
	if len(fake.keys) != len(want) {
		t.Fatalf("Expected %d upstream calls, got %d", len(want), len(fake.keys))
	}
	for i := range want {
		if fake.keys[i] != want[i] {
			t.Errorf("call #%d used key %q, want %q", i, fake.keys[i], want[i])
		}
	}
}

func TestGenerate_RateLimited(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusForbidden} {
		body := fmt.Sprintf(`{"error":{"code":%d,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`, status)
		fake := newFakeUpstream(t, status, body)
		svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

		_, err := svc.Generate(context.Background(), &ChatRequest{
			Messages: []*genai.Content{userMessage("hi")},
		})
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("status %d: Generate = %v, want ErrRateLimited", status, err)
		}
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	body := `{"error":{"code":500,"message":"backend exploded","status":"INTERNAL"}}`
	fake := newFakeUpstream(t, http.StatusInternalServerError, body)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Generate = %v, want ErrUpstream", err)
	}
	if !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error %q does not carry the upstream message", err)
	}
}

func TestGenerate_SafetyBlocked(t *testing.T) {
	body := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"SAFETY"}]}`
	fake := newFakeUpstream(t, http.StatusOK, body)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if !errors.Is(err, ErrSafetyBlocked) {
		t.Errorf("Generate = %v, want ErrSafetyBlocked", err)
	}
}

func TestGenerate_EmptyCandidateText(t *testing.T) {
	body := `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"STOP"}]}`
	fake := newFakeUpstream(t, http.StatusOK, body)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Generate = %v, want ErrEmptyResponse", err)
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, `{"candidates":[]}`)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: []*genai.Content{userMessage("hi")},
	})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("Generate = %v, want ErrUpstream", err)
	}
}

func TestGenerate_ImageAttachment(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	payload := base64.StdEncoding.EncodeToString([]byte("\x89PNG fake"))
	messages := []*genai.Content{userMessage("look at this")}

	_, err := svc.Generate(context.Background(), &ChatRequest{
		Messages: messages,
		Image:    "data:image/png;base64," + payload,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// The caller's message history must not be mutated.
	if len(messages[0].Parts) != 1 {
		t.Errorf("input message grew to %d parts", len(messages[0].Parts))
	}

	var body struct {
		Contents []struct {
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MIMEType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal([]byte(fake.lastBody(t)), &body); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
	if len(body.Contents) != 1 {
		t.Fatalf("Expected 1 content, got %d", len(body.Contents))
	}
	parts := body.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts on the last message, got %d", len(parts))
	}
	if parts[0].Text != "look at this" {
		t.Errorf("Expected original text part first, got %q", parts[0].Text)
	}
	if parts[1].InlineData == nil {
		t.Fatal("Expected an inlineData part")
	}
	if parts[1].InlineData.MIMEType != "image/png" {
		t.Errorf("Expected MIME type image/png, got %s", parts[1].InlineData.MIMEType)
	}
	if parts[1].InlineData.Data != payload {
		t.Errorf("Inline payload did not survive the round trip")
	}
}

func TestGenerate_MalformedImage(t *testing.T) {
	fake := newFakeUpstream(t, http.StatusOK, successBody)
	svc := newTestService(t, []string{"key-1"}, fake.srv.URL)

	for _, image := range []string{
		"not-a-data-url",
		"data:image/png;base64",
		"data:image/png,unencoded",
		"data:;base64,aGk=",
		"data:image/png;base64,!!!",
	} {
		_, err := svc.Generate(context.Background(), &ChatRequest{
			Messages: []*genai.Content{userMessage("hi")},
			Image:    image,
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("image %q: Generate = %v, want ErrValidation", image, err)
		}
	}
	if fake.callCount() != 0 {
		t.Errorf("Expected no upstream calls for malformed images, got %d", fake.callCount())
	}
}

func TestParseDataURL(t *testing.T) {
	data, err := parseDataURL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg bytes")))
	if err != nil {
		t.Fatalf("parseDataURL failed: %v", err)
	}
	if data.MIMEType != "image/jpeg" {
		t.Errorf("Expected MIME type image/jpeg, got %s", data.MIMEType)
	}
	if string(data.Data) != "jpeg bytes" {
		t.Errorf("Expected decoded payload, got %q", data.Data)
	}
}
