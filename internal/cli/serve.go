package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/knowledge"
	"github.com/mgpai22/smriti/internal/server"
	"github.com/mgpai22/smriti/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface and JSON API",
	Long: `Serve the extraction form at / and the JSON API:

  POST   /extract
  GET    /health
  GET    /api/v1/segments?q=&video_id=&tags=&min_duration=&max_duration=&limit=
  GET    /api/v1/segments/:id
  PATCH  /api/v1/segments/:id
  DELETE /api/v1/segments/:id
  GET    /api/v1/videos/:video_id
  GET    /api/v1/stats
  POST   /api/v1/collections
  GET    /api/v1/collections/:id

The server still starts without an API key or a reachable store; the
affected endpoints then report that they are not configured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addSummarizerFlags(serveCmd)
	serveCmd.Flags().
		String("host", "", "Server host (overrides config)")
	serveCmd.Flags().
		IntP("port", "p", 0, "Server port (overrides config, default 5002)")
	serveCmd.Flags().
		Bool("no-storage", false, "Run without a segment store")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverCfg := cfg.Server
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		serverCfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		serverCfg.Port = port
	}

	pipeline := &knowledge.Pipeline{
		Source: youtubeSource(),
		Logger: logger.Named("pipeline"),
	}

	if summarizer, err := buildSummarizer(ctx, cmd); err != nil {
		logger.Warnw("Summarizer not configured, /extract will be unavailable", "error", err)
	} else {
		pipeline.Summarizer = summarizer
		defer summarizer.Close()
	}

	var store storage.Store
	if noStorage, _ := cmd.Flags().GetBool("no-storage"); !noStorage {
		s, err := openStore(ctx)
		if err != nil {
			logger.Warnw("Storage not available, segment endpoints disabled", "error", err)
		} else {
			store = s
			pipeline.Store = s
			defer s.Close(context.Background())
		}
	}

	srv := server.New(serverCfg, &server.Dependencies{
		Pipeline: pipeline,
		Store:    store,
		Logger:   logger,
	})

	logger.Infow("Starting smriti server",
		"addr", srv.Addr(),
		"summarizer", pipeline.Summarizer != nil,
		"storage", store != nil,
	)

	if err := srv.Run(ctx, serverCfg.ShutdownTimeout); err != nil {
		return err
	}

	logger.Infow("Server gracefully stopped")
	return nil
}
