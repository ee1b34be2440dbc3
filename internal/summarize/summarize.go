package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mgpai22/smriti/internal/llmjson"
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.3

	SystemPrompt = "You are an expert at analyzing video transcripts and extracting key information. Always respond with valid JSON format."
)

var (
	// provider call failed; wrapped as "<Provider> API error: ..."
	ErrAPI = errors.New("API error")

	ErrEmptyTranscript = errors.New("transcript is empty")
)

// summary plus the entities pulled out of a transcript
type Result struct {
	Summary string   `json:"summary" yaml:"summary"`
	Books   []string `json:"books" yaml:"books"`
	People  []string `json:"people" yaml:"people"`
	Places  []string `json:"places" yaml:"places"`
	Facts   []string `json:"facts" yaml:"facts"`
	Topics  []string `json:"topics" yaml:"topics"`
	Model   string   `json:"model,omitempty" yaml:"model,omitempty"`
}

// interface for transcript summarization
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (*Result, error)
	Close() error
}

// summarization service provider
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

type Options struct {
	Model       string
	MaxTokens   int     // default 1000
	Temperature float64 // default 0.3
	SummaryOnly bool    // skip entity extraction, ask for prose only
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return DefaultMaxTokens
}

func (o Options) temperature() float64 {
	if o.Temperature > 0 {
		return o.Temperature
	}
	return DefaultTemperature
}

// creates Summarizer based on provider
func Factory(
	ctx context.Context,
	provider Provider,
	apiKey string,
	opts Options,
) (Summarizer, error) {
	switch provider {
	case ProviderOpenAI, "":
		return NewOpenAISummarizer(ctx, apiKey, opts)
	case ProviderAnthropic:
		return NewAnthropicSummarizer(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiSummarizer(ctx, apiKey, opts)
	default:
		return nil, fmt.Errorf("unsupported summarization provider: %s", provider)
	}
}

// BuildPrompt creates the analysis prompt for LLM providers
func BuildPrompt(transcript string, extractEntities bool) string {
	var sb strings.Builder

	if !extractEntities {
		sb.WriteString("Please provide a comprehensive summary of the following video transcript.\n\n")
		sb.WriteString("TRANSCRIPT:\n")
		sb.WriteString(transcript)
		sb.WriteString("\n\nPlease provide a 2-3 paragraph summary covering the main points, ")
		sb.WriteString("key insights, and important information discussed in the transcript.\n")
		return sb.String()
	}

	sb.WriteString("Please analyze the following video transcript and provide a comprehensive summary ")
	sb.WriteString("along with extracted information.\n\n")
	sb.WriteString("TRANSCRIPT:\n")
	sb.WriteString(transcript)
	sb.WriteString("\n\nPlease provide your response in the following JSON format:\n")
	sb.WriteString("{\n")
	sb.WriteString(`    "summary": "A concise 2-3 paragraph summary of the main points discussed",` + "\n")
	sb.WriteString(`    "books": ["list of books, publications, or written works mentioned"],` + "\n")
	sb.WriteString(`    "people": ["list of people's names mentioned (exclude generic references like 'my friend')"],` + "\n")
	sb.WriteString(`    "places": ["list of specific places, locations, cities, countries mentioned"],` + "\n")
	sb.WriteString(`    "facts": ["list of interesting facts, statistics, or claims made"],` + "\n")
	sb.WriteString(`    "topics": ["list of main topics or themes discussed"]` + "\n")
	sb.WriteString("}\n\n")

	sb.WriteString("Guidelines:\n")
	sb.WriteString("- For books: Include titles, author names if mentioned, academic papers, etc.\n")
	sb.WriteString("- For people: Include full names when available, exclude pronouns and generic references\n")
	sb.WriteString("- For places: Include specific locations, not general terms like \"here\" or \"there\"\n")
	sb.WriteString("- For facts: Include statistics, research findings, specific claims, interesting insights\n")
	sb.WriteString("- For topics: Include main themes, subjects, concepts discussed\n")
	sb.WriteString("- Keep all lists concise and relevant\n")
	sb.WriteString("- If a category has no clear mentions, return an empty list\n")

	return sb.String()
}

// ParseResult turns model output into a Result. When entities were requested
// but no JSON object can be found, the raw text becomes the summary.
func ParseResult(content string, extractEntities bool) *Result {
	content = strings.TrimSpace(content)
	if !extractEntities {
		return emptyResult(content)
	}

	raw, err := llmjson.Decode(content, func(raw json.RawMessage) bool {
		return gjson.ParseBytes(raw).IsObject()
	})
	if err != nil {
		return emptyResult(content)
	}

	obj := gjson.ParseBytes(raw)
	return &Result{
		Summary: strings.TrimSpace(obj.Get("summary").String()),
		Books:   stringList(obj.Get("books")),
		People:  stringList(obj.Get("people")),
		Places:  stringList(obj.Get("places")),
		Facts:   stringList(obj.Get("facts")),
		Topics:  stringList(obj.Get("topics")),
	}
}

func emptyResult(summary string) *Result {
	return &Result{
		Summary: summary,
		Books:   []string{},
		People:  []string{},
		Places:  []string{},
		Facts:   []string{},
		Topics:  []string{},
	}
}

// stringList flattens a JSON list into strings. Objects such as
// {"title": ..., "author": ...} are joined field by field.
func stringList(value gjson.Result) []string {
	out := []string{}
	if !value.Exists() {
		return out
	}
	if !value.IsArray() {
		if s := itemString(value); s != "" {
			out = append(out, s)
		}
		return out
	}

	value.ForEach(func(_, item gjson.Result) bool {
		if s := itemString(item); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func itemString(item gjson.Result) string {
	if !item.IsObject() {
		if item.Type == gjson.Null {
			return ""
		}
		return strings.TrimSpace(item.String())
	}

	var parts []string
	item.ForEach(func(_, field gjson.Result) bool {
		if s := strings.TrimSpace(field.String()); s != "" && !field.IsObject() && !field.IsArray() {
			parts = append(parts, s)
		}
		return true
	})
	return strings.Join(parts, " - ")
}

// APIError is a failed provider call. It matches ErrAPI.
type APIError struct {
	Provider string
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, ErrAPI, e.Err)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

func (e *APIError) Unwrap() error { return e.Err }

func apiError(provider string, err error) error {
	return &APIError{Provider: provider, Err: err}
}
