package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/config"
	"github.com/mgpai22/smriti/internal/logging"
)

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "smriti",
	Short: "Pull knowledge out of YouTube video segments",
	Long: `Smriti extracts the transcript of a time range of a YouTube video,
summarizes it with an LLM and pulls out the books, people, places, facts
and topics it mentions.

Extractions can be saved to a local or remote document store and searched
later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.NewLogger(verbose)

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "Config file (default ./config/settings.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output file path")
	rootCmd.PersistentFlags().
		StringP("language", "l", "", "Preferred transcript languages, comma separated (e.g., en,es)")
}
