package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/knowledge"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [youtube_url]",
	Short: "Extract a video segment and summarize it with an LLM",
	Long: `Extract the transcript of a time range of a YouTube video, summarize it
and pull out books, people, places, key facts and topics.

The report is printed as text, or as json/yaml with --format. Add --save to
store the result.

Examples:
  smriti summarize "https://youtu.be/DAQJvGjlgVM?t=89" -d 50
  smriti summarize "https://www.youtube.com/watch?v=DAQJvGjlgVM" -s 1:18:30 -e 1:21:09 -o report.txt
  smriti summarize "https://youtu.be/DAQJvGjlgVM" -s 2:00 -d 60 --provider anthropic --format json
  smriti summarize "https://youtu.be/DAQJvGjlgVM" -s 2:00 -d 60 --save --tags history,books`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

var storeCmd = &cobra.Command{
	Use:   "store [youtube_url]",
	Short: "Extract, summarize and save a video segment",
	Long: `Process a video segment end to end and save it to the configured store.
Prints the new segment id, how many entities were found and a short preview.

Examples:
  smriti store "https://www.youtube.com/watch?v=rCtvAvZtJyE" -s 1:18:30 -e 1:20:45 --tags history
  smriti store "https://youtu.be/rCtvAvZtJyE" -s 5:00 -d 120 --notes "follow up on the reading list"`,
	Args: cobra.ExactArgs(1),
	RunE: runStore,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(storeCmd)

	for _, cmd := range []*cobra.Command{summarizeCmd, storeCmd} {
		addWindowFlags(cmd)
		addSourceFlags(cmd)
		addSummarizerFlags(cmd)
		cmd.Flags().
			String("tags", "", "Comma separated tags for the saved segment")
		cmd.Flags().
			String("notes", "", "Free-form notes for the saved segment")
	}

	summarizeCmd.Flags().
		Bool("save", false, "Save the result to the configured store")
	summarizeCmd.Flags().
		StringP("format", "f", "text", "Output format (text, json, yaml)")
}

// newPipeline wires source, summarizer and, when withStore is set, storage.
// The returned cleanup closes whatever was opened.
func newPipeline(cmd *cobra.Command, url string, withStore bool) (*knowledge.Pipeline, func(), error) {
	ctx := cmd.Context()
	req := requestFromFlags(cmd, url)

	source, err := buildSource(ctx, cmd, req)
	if err != nil {
		return nil, nil, err
	}

	summarizer, err := buildSummarizer(ctx, cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create summarizer: %w", err)
	}

	p := &knowledge.Pipeline{
		Source:     source,
		Summarizer: summarizer,
		Logger:     logger,
	}
	cleanup := func() { _ = summarizer.Close() }

	if withStore {
		store, err := openStore(ctx)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		p.Store = store
		cleanup = func() {
			_ = summarizer.Close()
			_ = store.Close(ctx)
		}
	}

	return p, cleanup, nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	save, _ := cmd.Flags().GetBool("save")
	format, _ := cmd.Flags().GetString("format")
	tagsRaw, _ := cmd.Flags().GetString("tags")
	notes, _ := cmd.Flags().GetString("notes")

	pipeline, cleanup, err := newPipeline(cmd, args[0], save)
	if err != nil {
		return err
	}
	defer cleanup()

	req := requestFromFlags(cmd, args[0])
	var (
		ext *knowledge.Extraction
		id  string
	)
	if save {
		ext, id, err = pipeline.ProcessAndSave(cmd.Context(), req, splitList(tagsRaw), notes)
	} else {
		ext, err = pipeline.Process(cmd.Context(), req)
	}
	if err != nil {
		return friendly(err)
	}

	doc := ext.Document()
	doc.SegmentID = id

	content, err := encode(format, doc, func() string { return knowledge.RenderText(ext) })
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, content); err != nil {
		return err
	}

	if id != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Segment ID: %s\n", id)
	}
	return nil
}

func runStore(cmd *cobra.Command, args []string) error {
	tagsRaw, _ := cmd.Flags().GetString("tags")
	notes, _ := cmd.Flags().GetString("notes")
	tags := splitList(tagsRaw)

	pipeline, cleanup, err := newPipeline(cmd, args[0], true)
	if err != nil {
		return err
	}
	defer cleanup()

	ext, id, err := pipeline.ProcessAndSave(cmd.Context(), requestFromFlags(cmd, args[0]), tags, notes)
	if err != nil {
		return friendly(err)
	}

	printStored(cmd.OutOrStdout(), ext, id, tags)
	return nil
}

// friendly prefixes err with the user-facing explanation when one exists.
func friendly(err error) error {
	msg := knowledge.FriendlyError(err)
	if msg == err.Error() {
		return err
	}
	return fmt.Errorf("%s (%w)", msg, err)
}

func printStored(w io.Writer, ext *knowledge.Extraction, id string, tags []string) {
	sum := ext.Summary

	fmt.Fprintf(w, "Segment stored: %s\n", id)
	fmt.Fprintf(w, "  Video: %s (%ds - %ds)\n", ext.Segment.VideoID, ext.Segment.StartSeconds, ext.Segment.EndSeconds)
	fmt.Fprintf(w, "  Transcript: %d characters\n", len(ext.Segment.Text))
	fmt.Fprintf(w, "  Summary: %d characters\n", len(sum.Summary))
	fmt.Fprintf(w, "  Books: %d, People: %d, Places: %d, Facts: %d, Topics: %d\n",
		len(sum.Books), len(sum.People), len(sum.Places), len(sum.Facts), len(sum.Topics))
	if len(tags) > 0 {
		fmt.Fprintf(w, "  Tags: %v\n", tags)
	}

	previewList(w, "Books", sum.Books, 3)
	previewList(w, "People", sum.People, 5)
	previewList(w, "Key facts", sum.Facts, 3)
	previewList(w, "Topics", sum.Topics, len(sum.Topics))
}

func previewList(w io.Writer, title string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(items))
	for i, item := range items {
		if i == limit {
			fmt.Fprintf(w, "  ... and %d more\n", len(items)-limit)
			break
		}
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
