package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mgpai22/smriti/internal/knowledge"
	"github.com/mgpai22/smriti/internal/storage"
	"github.com/mgpai22/smriti/internal/youtube"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [video_id|youtube_url]",
	Short: "Show every stored segment of a video",
	Long: `List the stored segments of a video in start order with their summaries,
the entities found across all of them and a few statistics.

Examples:
  smriti retrieve rCtvAvZtJyE
  smriti retrieve "https://youtube.com/watch?v=rCtvAvZtJyE" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored segments",
	Long: `Search stored segments by text, video, tags and duration. Newest first.

Examples:
  smriti search --query dune
  smriti search --tags history,books --min-duration 60
  smriti search --video rCtvAvZtJyE --format json`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage segment collections",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create [name] [segment_id...]",
	Short: "Group stored segments into a named collection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCollectionCreate,
}

var collectionShowCmd = &cobra.Command{
	Use:   "show [collection_id]",
	Short: "Show a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [segment_id]",
	Short: "Delete a stored segment",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var updateCmd = &cobra.Command{
	Use:   "update [segment_id]",
	Short: "Update the tags, notes or summary of a stored segment",
	Long: `Update the user-editable fields of a stored segment. Only the flags that
are given are changed.

Examples:
  smriti update 0b8e... --tags history,reread
  smriti update 0b8e... --notes "see chapter 4"`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(updateCmd)
	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionShowCmd)

	for _, cmd := range []*cobra.Command{retrieveCmd, searchCmd, statsCmd, collectionShowCmd} {
		cmd.Flags().
			StringP("format", "f", "text", "Output format (text, json, yaml)")
	}

	searchCmd.Flags().
		StringP("query", "q", "", "Text to look for in summaries and transcripts")
	searchCmd.Flags().
		String("video", "", "Only segments of this video id")
	searchCmd.Flags().
		String("tags", "", "Comma separated tags; any match counts")
	searchCmd.Flags().
		Int("min-duration", 0, "Minimum segment duration in seconds")
	searchCmd.Flags().
		Int("max-duration", 0, "Maximum segment duration in seconds")
	searchCmd.Flags().
		Int("limit", storage.DefaultSearchLimit, "Maximum number of results")

	collectionCreateCmd.Flags().
		String("description", "", "Collection description")

	updateCmd.Flags().
		String("tags", "", "Replace tags (comma separated, empty clears)")
	updateCmd.Flags().
		String("notes", "", "Replace user notes")
	updateCmd.Flags().
		String("summary", "", "Replace the summary")
}

// videoIDFrom accepts a URL or a bare video id.
func videoIDFrom(input string) string {
	input = strings.TrimSpace(input)
	if id, _, err := youtube.ParseURL(input); err == nil {
		return id
	}
	return input
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	videoID := videoIDFrom(args[0])

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	segments, err := store.GetVideoSegments(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to retrieve segments: %w", err)
	}
	logger.Debugw("Retrieved segments", "video_id", videoID, "count", len(segments))

	report := knowledge.BuildVideoReport(videoID, segments)
	content, err := encode(format, report, func() string { return knowledge.RenderVideoReport(report) })
	if err != nil {
		return err
	}
	return writeOutput(cmd, content)
}

func searchQueryFromFlags(cmd *cobra.Command) storage.SearchQuery {
	query, _ := cmd.Flags().GetString("query")
	video, _ := cmd.Flags().GetString("video")
	tags, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")

	q := storage.SearchQuery{
		Query:   query,
		VideoID: videoIDFrom(video),
		Tags:    splitList(tags),
		Limit:   limit,
	}
	if cmd.Flags().Changed("min-duration") {
		v, _ := cmd.Flags().GetInt("min-duration")
		q.MinDuration = &v
	}
	if cmd.Flags().Changed("max-duration") {
		v, _ := cmd.Flags().GetInt("max-duration")
		q.MaxDuration = &v
	}
	return q
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")
	q := searchQueryFromFlags(cmd)

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	segments, err := store.SearchSegments(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if segments == nil {
		segments = []storage.Segment{}
	}

	content, err := encode(format, segments, func() string { return renderSearch(segments) })
	if err != nil {
		return err
	}
	return writeOutput(cmd, content)
}

func renderSearch(segments []storage.Segment) string {
	if len(segments) == 0 {
		return "No matching segments.\n"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT ID\tVIDEO\tRANGE\tTAGS\tSUMMARY")
	for _, seg := range segments {
		fmt.Fprintf(w, "%s\t%s\t%s-%s\t%s\t%s\n",
			seg.SegmentID,
			seg.VideoID,
			youtube.FormatTimestamp(float64(seg.StartTime)),
			youtube.FormatTimestamp(float64(seg.EndTime)),
			strings.Join(seg.Tags, ","),
			truncate(seg.Summary, 60),
		)
	}
	_ = w.Flush()
	fmt.Fprintf(&b, "\n%d segment(s)\n", len(segments))
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}

	content, err := encode(format, stats, func() string { return renderStats(stats) })
	if err != nil {
		return err
	}
	return writeOutput(cmd, content)
}

func renderStats(s *storage.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Segments:           %d\n", s.TotalSegments)
	fmt.Fprintf(&b, "Videos:             %d\n", s.TotalVideos)
	fmt.Fprintf(&b, "Collections:        %d\n", s.TotalCollections)
	fmt.Fprintf(&b, "Summaries:          %d\n", s.TotalSummaries)
	fmt.Fprintf(&b, "Transcript chars:   %d\n", s.TotalTranscriptChars)
	fmt.Fprintf(&b, "Knowledge entities: %d\n", s.TotalKnowledgeEntities)
	if s.LatestSegmentDate != nil {
		fmt.Fprintf(&b, "Latest segment:     %s\n", s.LatestSegmentDate.Format("2006-01-02 15:04:05"))
	}
	if s.LatestSummaryDate != nil {
		fmt.Fprintf(&b, "Latest summary:     %s\n", s.LatestSummaryDate.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description, _ := cmd.Flags().GetString("description")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	id, err := store.CreateCollection(ctx, args[0], description, args[1:])
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Collection created: %s (%d segments)\n", id, len(args)-1)
	return nil
}

func runCollectionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	collection, err := store.GetCollection(ctx, args[0])
	if err != nil {
		return err
	}

	content, err := encode(format, collection, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s)\n", collection.Name, collection.CollectionID)
		if collection.Description != "" {
			fmt.Fprintf(&b, "%s\n", collection.Description)
		}
		fmt.Fprintf(&b, "Segments (%d):\n", collection.SegmentCount)
		for _, id := range collection.SegmentIDs {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
		return b.String()
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, content)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.DeleteSegment(ctx, args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Segment deleted: %s\n", args[0])
	return nil
}

func segmentUpdateFromFlags(cmd *cobra.Command) storage.SegmentUpdate {
	var update storage.SegmentUpdate
	if cmd.Flags().Changed("tags") {
		raw, _ := cmd.Flags().GetString("tags")
		tags := splitList(raw)
		if tags == nil {
			tags = []string{}
		}
		update.Tags = &tags
	}
	if cmd.Flags().Changed("notes") {
		notes, _ := cmd.Flags().GetString("notes")
		update.UserNotes = &notes
	}
	if cmd.Flags().Changed("summary") {
		summary, _ := cmd.Flags().GetString("summary")
		update.Summary = &summary
	}
	return update
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	update := segmentUpdateFromFlags(cmd)
	if update.IsEmpty() {
		return fmt.Errorf("nothing to update: use --tags, --notes or --summary")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	if err := store.UpdateSegment(ctx, args[0], update); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Segment updated: %s\n", args[0])
	return nil
}
