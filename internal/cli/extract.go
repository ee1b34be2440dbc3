package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/subtitle"
	"github.com/mgpai22/smriti/internal/youtube"
)

var extractCmd = &cobra.Command{
	Use:   "extract [youtube_url]",
	Short: "Extract the transcript of a video segment",
	Long: `Extract the transcript of a time range of a YouTube video without
calling an LLM.

The start can come from --start or from the URL's t= parameter. The end is
--end, else start plus --duration, else the end of the transcript.

Output formats: text, json, yaml, srt, vtt. Subtitle formats are written to
--output (default <video_id>_<start>-<end>.<format>).

Examples:
  smriti extract "https://youtu.be/DAQJvGjlgVM?t=89" -d 50
  smriti extract "https://www.youtube.com/watch?v=DAQJvGjlgVM" -s 1:18:30 -e 1:21:09 --timestamps
  smriti extract "https://youtu.be/DAQJvGjlgVM" -s 2:00 -d 30 --format srt
  smriti extract "https://youtu.be/DAQJvGjlgVM" --captions talk.en.vtt -s 1:29 --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	addWindowFlags(extractCmd)
	addSourceFlags(extractCmd)
	extractCmd.Flags().
		Bool("timestamps", false, "Prefix every caption with its [MM:SS] timestamp")
	extractCmd.Flags().
		Bool("copy", false, "Copy the transcript text to the clipboard")
	extractCmd.Flags().
		StringP("format", "f", "text", "Output format (text, json, yaml, srt, vtt)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	format, _ := cmd.Flags().GetString("format")
	timestamps, _ := cmd.Flags().GetBool("timestamps")
	copyText, _ := cmd.Flags().GetBool("copy")

	req := requestFromFlags(cmd, args[0])
	source, err := buildSource(ctx, cmd, req)
	if err != nil {
		return err
	}

	logger.Infow("Extracting segment",
		"url", req.URL,
		"start", req.Start,
		"end", req.End,
		"duration", req.Duration,
		"languages", req.Languages,
	)

	seg, err := youtube.Extract(ctx, source, req)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	logger.Infow("Segment extracted",
		"video_id", seg.VideoID,
		"start", seg.StartSeconds,
		"end", seg.EndSeconds,
		"captions", len(seg.Entries),
		"chars", len(seg.Text),
	)

	if copyText {
		if err := clipboard.WriteAll(seg.Text); err != nil {
			logger.Warnw("Could not copy to clipboard", "error", err)
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Transcript copied to clipboard")
		}
	}

	switch strings.ToLower(format) {
	case "srt", "vtt":
		return writeSubtitles(cmd, seg, format)
	}

	content, err := encode(format, seg, func() string {
		if timestamps {
			return youtube.FormatWithTimestamps(*seg) + "\n"
		}
		return seg.Text + "\n"
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, content)
}

func writeSubtitles(cmd *cobra.Command, seg *youtube.ExtractedSegment, formatStr string) error {
	format, err := subtitle.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = subtitlePath(seg, format)
	} else if filepath.Ext(outputPath) != format.Extension() {
		outputPath = strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + format.Extension()
	}

	track := subtitle.FromCaptions(seg.Entries)
	track.Format = format
	if langs := languages(cmd); len(langs) > 0 {
		track.Language = langs[0]
	}

	if err := subtitle.WriteFile(outputPath, track); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Subtitles written: %s\n", absOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "  Entries: %d\n", len(track.Entries))
	return nil
}

func subtitlePath(seg *youtube.ExtractedSegment, format subtitle.Format) string {
	return fmt.Sprintf("%s_%d-%d%s", seg.VideoID, seg.StartSeconds, seg.EndSeconds, format.Extension())
}
