package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mgpai22/smriti/internal/config"
	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/summarize"
	"github.com/mgpai22/smriti/internal/transcribe"
	"github.com/mgpai22/smriti/internal/transcript"
	"github.com/mgpai22/smriti/internal/youtube"
)

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().
		StringP("start", "s", "", "Segment start (e.g., 1:29, 1:24:07 or 89)")
	cmd.Flags().
		StringP("end", "e", "", "Segment end (e.g., 2:19)")
	cmd.Flags().
		StringP("duration", "d", "", "Segment length, ignored when --end is set (e.g., 50 or 0:50)")
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().
		String("captions", "", "Read captions from a local SRT or VTT file instead of YouTube")
	cmd.Flags().
		String("media", "", "Transcribe a local audio or video file instead of fetching captions")
	cmd.Flags().
		String("transcriber", "", "Speech provider for --media (openai, gemini)")
	cmd.Flags().
		String("transcriber-key", "", "API key for the --media transcriber")
	cmd.Flags().
		Bool("media-fallback", false, "Try YouTube captions first and transcribe --media only when none exist")
}

func addSummarizerFlags(cmd *cobra.Command) {
	cmd.Flags().
		String("provider", "", "Summarization provider (openai, anthropic, gemini)")
	cmd.Flags().
		String("model", "", "Model override (provider-specific, uses sensible defaults)")
	cmd.Flags().
		StringP("api-key", "k", "", "API key (or set OPENAI_API_KEY/ANTHROPIC_API_KEY/GEMINI_API_KEY)")
	cmd.Flags().
		Bool("summary-only", false, "Only summarize, skip entity extraction")
}

func requestFromFlags(cmd *cobra.Command, url string) youtube.Request {
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	duration, _ := cmd.Flags().GetString("duration")

	return youtube.Request{
		URL:       url,
		Start:     start,
		End:       end,
		Duration:  duration,
		Languages: languages(cmd),
	}
}

// languages prefers --language, then the configured list.
func languages(cmd *cobra.Command) []string {
	raw, _ := cmd.Flags().GetString("language")
	if langs := splitList(raw); len(langs) > 0 {
		return langs
	}
	if cfg != nil && len(cfg.Transcript.Languages) > 0 {
		return cfg.Transcript.Languages
	}
	return youtube.DefaultLanguages
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// buildSource picks the transcript source from --captions, --media or
// YouTube itself.
func buildSource(ctx context.Context, cmd *cobra.Command, req youtube.Request) (youtube.Fetcher, error) {
	captionsPath, _ := cmd.Flags().GetString("captions")
	mediaPath, _ := cmd.Flags().GetString("media")

	switch {
	case captionsPath != "" && mediaPath != "":
		return nil, fmt.Errorf("--captions and --media cannot be used together")

	case captionsPath != "":
		logger.Debugw("Using caption file", "path", captionsPath)
		return transcript.FileSource{Path: captionsPath}, nil

	case mediaPath != "":
		media, err := buildMediaSource(ctx, cmd, mediaPath, req)
		if err != nil {
			return nil, err
		}
		if fallback, _ := cmd.Flags().GetBool("media-fallback"); fallback {
			return transcript.FallbackSource{Primary: youtubeSource(), Fallback: media}, nil
		}
		return media, nil

	default:
		return youtubeSource(), nil
	}
}

func youtubeSource() transcript.Source {
	yt := transcript.NewYouTubeSource(transcript.YouTubeConfig{
		Timeout:       cfg.Transcript.Timeout,
		RatePerSecond: cfg.Transcript.RatePerSecond,
	})
	return transcript.NewCachedSource(yt, cfg.Transcript.CacheTTL)
}

func buildMediaSource(
	ctx context.Context,
	cmd *cobra.Command,
	path string,
	req youtube.Request,
) (youtube.Fetcher, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	provider, _ := cmd.Flags().GetString("transcriber")
	if provider == "" {
		provider = cfg.Media.Transcriber
	}
	apiKey, _ := cmd.Flags().GetString("transcriber-key")
	apiKey = config.ProviderAPIKey(provider, apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required for --media: use --transcriber-key or set it in the environment", provider)
	}

	langs := languages(cmd)
	transcriber, err := transcribe.Factory(ctx, transcribe.Provider(provider), apiKey, transcribe.Options{
		Language: langs[0],
		Model:    cfg.Media.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}

	plan, err := req.Resolve()
	if err != nil {
		return nil, err
	}
	window := &youtube.TimeWindow{StartSeconds: plan.Start}
	switch {
	case plan.End != nil:
		window.EndSeconds = *plan.End
	case plan.Duration != nil:
		window.EndSeconds = plan.Start + *plan.Duration
	}

	logger.Infow("Using local media", "path", path, "transcriber", provider, "window", window)
	return &transcript.MediaSource{
		Path:          path,
		Transcriber:   transcriber,
		Window:        window,
		ChunkDuration: cfg.Media.ChunkDuration,
		Concurrency:   cfg.Media.Concurrency,
		Logger:        logger,
	}, nil
}

func buildSummarizer(ctx context.Context, cmd *cobra.Command) (summarize.Summarizer, error) {
	provider, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	apiKey, _ := cmd.Flags().GetString("api-key")
	summaryOnly, _ := cmd.Flags().GetBool("summary-only")

	if provider == "" {
		provider = cfg.Summarizer.Provider
	}
	if model == "" {
		model = cfg.Summarizer.Model
	}
	if apiKey == "" {
		apiKey = cfg.Summarizer.APIKey
	}
	apiKey = config.ProviderAPIKey(provider, apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required: use --api-key or set it in the environment", provider)
	}

	return summarize.Factory(ctx, summarize.Provider(provider), apiKey, summarize.Options{
		Model:       model,
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Temperature: cfg.Summarizer.Temperature,
		SummaryOnly: summaryOnly,
	})
}

func openStore(ctx context.Context) (storage.Store, error) {
	logger.Debugw("Opening storage", "backend", cfg.Storage.Backend)
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	return store, nil
}

// encode renders v as json or yaml; "text" uses the supplied renderer.
func encode(format string, v any, text func() string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return text(), nil
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode json: %w", err)
		}
		return string(b) + "\n", nil
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode yaml: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported format %q: use text, json or yaml", format)
	}
}

// writeOutput writes content to --output, or to stdout when unset.
func writeOutput(cmd *cobra.Command, content string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved to: %s\n", absOutput)
	return nil
}
