package summarize

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// implements Summarizer using Google Gemini
type GeminiSummarizer struct {
	client  *genai.Client
	model   string
	options Options
}

func NewGeminiSummarizer(
	ctx context.Context,
	apiKey string,
	opts Options,
) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return &GeminiSummarizer{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	extract := !s.options.SummaryOnly
	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(transcript, extract), genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(s.options.temperature())),
		MaxOutputTokens:   int32(s.options.maxTokens()),
		// thinking tokens count against MaxOutputTokens
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if extract {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, apiError("Gemini", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, apiError("Gemini", fmt.Errorf("no text in response"))
	}

	result := ParseResult(text, extract)
	result.Model = s.model
	return result, nil
}

func (s *GeminiSummarizer) Close() error {
	return nil
}
