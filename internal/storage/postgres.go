package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS segments (
	segment_id      TEXT PRIMARY KEY,
	video_id        TEXT NOT NULL,
	url             TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	start_time      INTEGER NOT NULL DEFAULT 0,
	end_time        INTEGER NOT NULL DEFAULT 0,
	duration        INTEGER NOT NULL DEFAULT 0,
	transcription   TEXT NOT NULL DEFAULT '',
	summary         TEXT NOT NULL DEFAULT '',
	books           JSONB NOT NULL DEFAULT '[]',
	people          JSONB NOT NULL DEFAULT '[]',
	places          JSONB NOT NULL DEFAULT '[]',
	facts           JSONB NOT NULL DEFAULT '[]',
	topics          JSONB NOT NULL DEFAULT '[]',
	tags            JSONB NOT NULL DEFAULT '[]',
	user_notes      TEXT NOT NULL DEFAULT '',
	character_count INTEGER NOT NULL DEFAULT 0,
	caption_count   INTEGER NOT NULL DEFAULT 0,
	model_used      TEXT NOT NULL DEFAULT '',
	extraction_type TEXT NOT NULL DEFAULT '',
	processed_at    TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS segments_video_id_idx ON segments (video_id, start_time);
CREATE INDEX IF NOT EXISTS segments_created_at_idx ON segments (created_at DESC);

CREATE TABLE IF NOT EXISTS videos (
	video_id          TEXT PRIMARY KEY,
	segment_count     INTEGER NOT NULL DEFAULT 0,
	last_extracted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS collections (
	collection_id TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	segment_ids   JSONB NOT NULL DEFAULT '[]',
	segment_count INTEGER NOT NULL DEFAULT 0,
	tags          JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);`

const segmentColumns = `segment_id, video_id, url, title, start_time, end_time, duration,
	transcription, summary, books, people, places, facts, topics, tags, user_notes,
	character_count, caption_count, model_used, extraction_type, processed_at,
	created_at, updated_at`

// PostgresStore keeps segments in Postgres with JSONB list columns
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SaveSegment(ctx context.Context, seg *Segment) (string, error) {
	ts := now()
	prepareNew(seg, ts)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO segments (`+segmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		seg.SegmentID, seg.VideoID, seg.URL, seg.Title, seg.StartTime, seg.EndTime, seg.Duration,
		seg.Transcription, seg.Summary, seg.Books, seg.People, seg.Places, seg.Facts, seg.Topics, seg.Tags, seg.UserNotes,
		seg.CharacterCount, seg.CaptionCount, seg.ProcessingMetadata.ModelUsed, seg.ProcessingMetadata.ExtractionType,
		seg.ProcessingMetadata.ProcessedAt, seg.CreatedAt, seg.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save segment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO videos (video_id, segment_count, last_extracted_at) VALUES ($1, 1, $2)
		ON CONFLICT (video_id) DO UPDATE
		SET segment_count = videos.segment_count + 1, last_extracted_at = EXCLUDED.last_extracted_at`,
		seg.VideoID, ts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update video %s: %w", seg.VideoID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit segment: %w", err)
	}
	return seg.SegmentID, nil
}

func (s *PostgresStore) GetSegment(ctx context.Context, id string) (*Segment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE segment_id = $1`, id)
	seg, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get segment %s: %w", id, err)
	}
	return seg, nil
}

// postgresSearchQuery renders q as a parameterized SELECT.
func postgresSearchQuery(q SearchQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.VideoID != "" {
		where = append(where, "video_id = "+arg(q.VideoID))
	}
	if len(q.Tags) > 0 {
		where = append(where, "tags ?| "+arg(q.Tags))
	}
	if q.MinDuration != nil {
		where = append(where, "duration >= "+arg(*q.MinDuration))
	}
	if q.MaxDuration != nil {
		where = append(where, "duration <= "+arg(*q.MaxDuration))
	}
	if text := strings.TrimSpace(q.Query); text != "" {
		p := arg("%" + text + "%")
		where = append(where, fmt.Sprintf("(summary ILIKE %s OR transcription ILIKE %s)", p, p))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + segmentColumns + " FROM segments")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC LIMIT " + arg(q.limit()))

	return sb.String(), args
}

func (s *PostgresStore) SearchSegments(ctx context.Context, q SearchQuery) ([]Segment, error) {
	query, args := postgresSearchQuery(q)
	return s.query(ctx, query, args...)
}

func (s *PostgresStore) GetVideoSegments(ctx context.Context, videoID string) ([]Segment, error) {
	return s.query(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE video_id = $1 ORDER BY start_time ASC`,
		videoID,
	)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Segment, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, *seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return segments, nil
}

func scanSegment(row pgx.Row) (*Segment, error) {
	var seg Segment
	err := row.Scan(
		&seg.SegmentID, &seg.VideoID, &seg.URL, &seg.Title, &seg.StartTime, &seg.EndTime, &seg.Duration,
		&seg.Transcription, &seg.Summary, &seg.Books, &seg.People, &seg.Places, &seg.Facts, &seg.Topics,
		&seg.Tags, &seg.UserNotes, &seg.CharacterCount, &seg.CaptionCount,
		&seg.ProcessingMetadata.ModelUsed, &seg.ProcessingMetadata.ExtractionType,
		&seg.ProcessingMetadata.ProcessedAt, &seg.CreatedAt, &seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

func (s *PostgresStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var video Video
	err := s.pool.QueryRow(ctx,
		`SELECT video_id, segment_count, last_extracted_at FROM videos WHERE video_id = $1`,
		videoID,
	).Scan(&video.VideoID, &video.SegmentCount, &video.LastExtractedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get video %s: %w", videoID, err)
	}
	return &video, nil
}

func (s *PostgresStore) UpdateSegment(ctx context.Context, id string, update SegmentUpdate) error {
	sets := []string{"updated_at = $2"}
	args := []any{id, now()}
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Tags != nil {
		set("tags", nonNil(*update.Tags))
	}
	if update.UserNotes != nil {
		set("user_notes", *update.UserNotes)
	}
	if update.Summary != nil {
		set("summary", *update.Summary)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE segments SET `+strings.Join(sets, ", ")+` WHERE segment_id = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update segment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteSegment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM segments WHERE segment_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateCollection(ctx context.Context, name, description string, segmentIDs []string) (string, error) {
	c, err := newCollection(name, description, segmentIDs, now())
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO collections (collection_id, name, description, segment_ids, segment_count, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.CollectionID, c.Name, c.Description, c.SegmentIDs, c.SegmentCount, c.Tags, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}
	return c.CollectionID, nil
}

func (s *PostgresStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	err := s.pool.QueryRow(ctx,
		`SELECT collection_id, name, description, segment_ids, segment_count, tags, created_at, updated_at
		FROM collections WHERE collection_id = $1`,
		id,
	).Scan(&c.CollectionID, &c.Name, &c.Description, &c.SegmentIDs, &c.SegmentCount, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var (
		segments, videos, chars, summaries, entities, collections int64
		stats                                                     Stats
	)

	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT video_id),
			COALESCE(SUM(character_count), 0),
			MAX(created_at),
			COUNT(*) FILTER (WHERE summary <> ''),
			COALESCE(SUM(
				jsonb_array_length(books) + jsonb_array_length(people) + jsonb_array_length(places) +
				jsonb_array_length(facts) + jsonb_array_length(topics)
			) FILTER (WHERE summary <> ''), 0),
			MAX(created_at) FILTER (WHERE summary <> ''),
			(SELECT COUNT(*) FROM collections)
		FROM segments`,
	).Scan(&segments, &videos, &chars, &stats.LatestSegmentDate, &summaries, &entities,
		&stats.LatestSummaryDate, &collections)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	stats.TotalSegments = int(segments)
	stats.TotalVideos = int(videos)
	stats.TotalTranscriptChars = int(chars)
	stats.TotalSummaries = int(summaries)
	stats.TotalKnowledgeEntities = int(entities)
	stats.TotalCollections = int(collections)

	return &stats, nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
