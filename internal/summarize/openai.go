package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// implements Summarizer using OpenAI Chat Completions
type OpenAISummarizer struct {
	client  openai.Client
	model   string
	options Options
}

func NewOpenAISummarizer(
	ctx context.Context,
	apiKey string,
	opts Options,
	requestOpts ...option.RequestOption,
) (*OpenAISummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, requestOpts...)...)

	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAISummarizer{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (*Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, ErrEmptyTranscript
	}

	extract := !s.options.SummaryOnly
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage(BuildPrompt(transcript, extract)),
		},
		Model:               s.model,
		MaxCompletionTokens: openai.Int(int64(s.options.maxTokens())),
		Temperature:         openai.Float(s.options.temperature()),
	}
	if extract {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apiError("OpenAI", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, apiError("OpenAI", fmt.Errorf("empty response"))
	}

	result := ParseResult(completion.Choices[0].Message.Content, extract)
	result.Model = s.model
	return result, nil
}

func (s *OpenAISummarizer) Close() error {
	return nil
}
