package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// implements Summarizer using Anthropic Claude
type AnthropicSummarizer struct {
	client  anthropic.Client
	model   anthropic.Model
	options Options
}

func NewAnthropicSummarizer(
	ctx context.Context,
	apiKey string,
	opts Options,
	requestOpts ...option.RequestOption,
) (*AnthropicSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, requestOpts...)...)

	model := anthropic.Model(opts.Model)
	if opts.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}

	return &AnthropicSummarizer{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (s *AnthropicSummarizer) Summarize(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	extract := !s.options.SummaryOnly
	message, err := s.client.Messages.New(
		ctx,
		anthropic.MessageNewParams{
			Model:       s.model,
			MaxTokens:   int64(s.options.maxTokens()),
			Temperature: anthropic.Float(s.options.temperature()),
			System: []anthropic.TextBlockParam{
				{Text: SystemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(
					anthropic.NewTextBlock(BuildPrompt(transcript, extract)),
				),
			},
		},
	)
	if err != nil {
		return nil, apiError("Anthropic", err)
	}
	if message == nil || len(message.Content) == 0 {
		return nil, apiError("Anthropic", fmt.Errorf("empty response"))
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}

	result := ParseResult(responseText.String(), extract)
	result.Model = string(s.model)
	return result, nil
}

func (s *AnthropicSummarizer) Close() error {
	return nil
}
