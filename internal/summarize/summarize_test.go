package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/option"
)

func TestFactory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		provider Provider
		wantType string
		wantErr  bool
	}{
		{ProviderOpenAI, "*summarize.OpenAISummarizer", false},
		{"", "*summarize.OpenAISummarizer", false},
		{ProviderAnthropic, "*summarize.AnthropicSummarizer", false},
		{ProviderGemini, "*summarize.GeminiSummarizer", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			s, err := Factory(ctx, tt.provider, "fake-key", Options{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Factory(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := reflect.TypeOf(s).String(); got != tt.wantType {
				t.Errorf("Factory(%q) = %s, want %s", tt.provider, got, tt.wantType)
			}
		})
	}
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	for _, p := range []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini} {
		if _, err := Factory(context.Background(), p, "", Options{}); err == nil {
			t.Errorf("expected error for %s without API key", p)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("we talked about Deep Work", true)

	for _, want := range []string{
		"TRANSCRIPT:\nwe talked about Deep Work",
		`"summary":`,
		`"books":`,
		`"people":`,
		`"places":`,
		`"facts":`,
		`"topics":`,
		"Guidelines:",
		"If a category has no clear mentions, return an empty list",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptSummaryOnly(t *testing.T) {
	prompt := BuildPrompt("short talk", false)

	if !strings.Contains(prompt, "2-3 paragraph summary") {
		t.Error("prompt should ask for a prose summary")
	}
	if strings.Contains(prompt, `"books"`) {
		t.Error("summary-only prompt should not ask for entities")
	}
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		content string
		extract bool
		want    *Result
	}{
		{
			name:    "plain JSON",
			content: `{"summary": "A talk.", "books": ["Deep Work"], "people": ["Cal Newport"], "places": [], "facts": ["4 hours a day"], "topics": ["focus"]}`,
			extract: true,
			want: &Result{
				Summary: "A talk.",
				Books:   []string{"Deep Work"},
				People:  []string{"Cal Newport"},
				Places:  []string{},
				Facts:   []string{"4 hours a day"},
				Topics:  []string{"focus"},
			},
		},
		{
			name:    "fenced JSON with missing keys",
			content: "```json\n{\"summary\": \"Only summary\"}\n```",
			extract: true,
			want:    emptyResult("Only summary"),
		},
		{
			name:    "object items and blanks",
			content: `{"summary": "s", "books": [{"title": "Deep Work", "author": "Cal Newport"}, "", null], "places": "Paris"}`,
			extract: true,
			want: &Result{
				Summary: "s",
				Books:   []string{"Deep Work - Cal Newport"},
				People:  []string{},
				Places:  []string{"Paris"},
				Facts:   []string{},
				Topics:  []string{},
			},
		},
		{
			name:    "not JSON falls back to raw text",
			content: "  The video covers focus.  ",
			extract: true,
			want:    emptyResult("The video covers focus."),
		},
		{
			name:    "summary only keeps text",
			content: `{"summary": "ignored structure"}`,
			extract: false,
			want:    emptyResult(`{"summary": "ignored structure"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResult(tt.content, tt.extract)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseResult() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarizeRejectsEmptyTranscript(t *testing.T) {
	s, err := NewOpenAISummarizer(context.Background(), "fake-key", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Summarize(context.Background(), "   "); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
}

const chatCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "{\"summary\": \"About focus.\", \"topics\": [\"focus\"]}"}
	}]
}`

func TestOpenAISummarizer(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletion))
	}))
	defer server.Close()

	s, err := NewOpenAISummarizer(context.Background(), "fake-key", Options{}, option.WithBaseURL(server.URL+"/"))
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Summarize(context.Background(), "we talked about focus")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if result.Summary != "About focus." || !reflect.DeepEqual(result.Topics, []string{"focus"}) {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", result.Model)
	}

	if body["model"] != "gpt-4o-mini" {
		t.Errorf("request model = %v", body["model"])
	}
	if body["temperature"] != 0.3 {
		t.Errorf("request temperature = %v, want 0.3", body["temperature"])
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", body["response_format"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	system, _ := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != SystemPrompt {
		t.Errorf("unexpected system message %v", system)
	}
}

func TestOpenAISummarizerAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	s, err := NewOpenAISummarizer(
		context.Background(), "fake-key", Options{},
		option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Summarize(context.Background(), "text")
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected ErrAPI, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "OpenAI API error: ") {
		t.Errorf("error = %q, want OpenAI API error prefix", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Provider != "OpenAI" {
		t.Errorf("expected *APIError from OpenAI, got %#v", err)
	}
}

func TestAnthropicSummarizer(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Here you go: {\"summary\": \"Claude summary\", \"people\": [\"Ada Lovelace\"]}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 10}
		}`))
	}))
	defer server.Close()

	s, err := NewAnthropicSummarizer(
		context.Background(), "fake-key", Options{MaxTokens: 500},
		anthropicoption.WithBaseURL(server.URL+"/"),
	)
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Summarize(context.Background(), "a talk about Ada")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if result.Summary != "Claude summary" || !reflect.DeepEqual(result.People, []string{"Ada Lovelace"}) {
		t.Errorf("unexpected result %+v", result)
	}
	if body["max_tokens"] != float64(500) {
		t.Errorf("max_tokens = %v, want 500", body["max_tokens"])
	}
}

// Integration test: only runs if OPENAI_API_KEY is set
func TestOpenAISummarizerIntegration(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set; skipping integration test")
	}

	s, err := NewOpenAISummarizer(context.Background(), apiKey, Options{})
	if err != nil {
		t.Fatal(err)
	}

	result, err := s.Summarize(context.Background(),
		"Today we discuss the book Deep Work by Cal Newport, written in Washington DC.")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if result.Summary == "" {
		t.Error("expected a summary")
	}
}
