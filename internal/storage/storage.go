// Package storage persists extracted segments, their summaries and
// user-curated collections.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/smriti/internal/config"
)

const (
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	ExtractionType = "full_knowledge_extraction"

	DefaultSearchLimit = 20
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// how a segment's knowledge was produced
type ProcessingMetadata struct {
	ModelUsed      string    `json:"model_used" yaml:"model_used" bson:"model_used"`
	ExtractionType string    `json:"extraction_type" yaml:"extraction_type" bson:"extraction_type"`
	ProcessedAt    time.Time `json:"processed_at" yaml:"processed_at" bson:"processed_at"`
}

// Segment is one stored extraction: the transcript window, its summary and
// the entities found in it.
type Segment struct {
	SegmentID string `json:"segment_id" yaml:"segment_id" bson:"segment_id" gorm:"primaryKey;size:36"`
	VideoID   string `json:"video_id" yaml:"video_id" bson:"video_id" gorm:"index;size:32"`
	URL       string `json:"url" yaml:"url" bson:"url"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty" bson:"title,omitempty"`
	StartTime int    `json:"start_time" yaml:"start_time" bson:"start_time"`
	EndTime   int    `json:"end_time" yaml:"end_time" bson:"end_time"`
	Duration  int    `json:"duration" yaml:"duration" bson:"duration"`

	Transcription string   `json:"transcription" yaml:"transcription" bson:"transcription"`
	Summary       string   `json:"summary" yaml:"summary" bson:"summary"`
	Books         []string `json:"books" yaml:"books" bson:"books" gorm:"serializer:json"`
	People        []string `json:"people" yaml:"people" bson:"people" gorm:"serializer:json"`
	Places        []string `json:"places" yaml:"places" bson:"places" gorm:"serializer:json"`
	Facts         []string `json:"facts" yaml:"facts" bson:"facts" gorm:"serializer:json"`
	Topics        []string `json:"topics" yaml:"topics" bson:"topics" gorm:"serializer:json"`

	Tags      []string `json:"tags" yaml:"tags" bson:"tags" gorm:"serializer:json"`
	UserNotes string   `json:"user_notes" yaml:"user_notes" bson:"user_notes"`

	CharacterCount     int                `json:"character_count" yaml:"character_count" bson:"character_count"`
	CaptionCount       int                `json:"caption_count" yaml:"caption_count" bson:"caption_count"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata" yaml:"processing_metadata" bson:"processing_metadata" gorm:"embedded;embeddedPrefix:processing_"`
	CreatedAt          time.Time          `json:"created_at" yaml:"created_at" bson:"created_at" gorm:"index"`
	UpdatedAt          time.Time          `json:"updated_at" yaml:"updated_at" bson:"updated_at"`
}

// EntityCount is the number of extracted knowledge items.
func (s *Segment) EntityCount() int {
	return len(s.Books) + len(s.People) + len(s.Places) + len(s.Facts) + len(s.Topics)
}

// partial update; nil fields are left alone
type SegmentUpdate struct {
	Tags      *[]string `json:"tags,omitempty"`
	UserNotes *string   `json:"user_notes,omitempty"`
	Summary   *string   `json:"summary,omitempty"`
}

func (u SegmentUpdate) IsEmpty() bool {
	return u.Tags == nil && u.UserNotes == nil && u.Summary == nil
}

// filters for SearchSegments; zero values mean "no filter"
type SearchQuery struct {
	Query       string   `json:"query,omitempty"`
	VideoID     string   `json:"video_id,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	MinDuration *int     `json:"min_duration,omitempty"`
	MaxDuration *int     `json:"max_duration,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

func (q SearchQuery) limit() int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultSearchLimit
}

// named group of segments
type Collection struct {
	CollectionID string    `json:"collection_id" yaml:"collection_id" bson:"collection_id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" yaml:"name" bson:"name"`
	Description  string    `json:"description" yaml:"description" bson:"description"`
	SegmentIDs   []string  `json:"segment_ids" yaml:"segment_ids" bson:"segment_ids" gorm:"serializer:json"`
	SegmentCount int       `json:"segment_count" yaml:"segment_count" bson:"segment_count"`
	Tags         []string  `json:"tags" yaml:"tags" bson:"tags" gorm:"serializer:json"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at" bson:"updated_at"`
}

// per-video bookkeeping updated on every save
type Video struct {
	VideoID         string    `json:"video_id" yaml:"video_id" bson:"video_id" gorm:"primaryKey;size:32"`
	SegmentCount    int       `json:"segment_count" yaml:"segment_count" bson:"segment_count"`
	LastExtractedAt time.Time `json:"last_extracted_at" yaml:"last_extracted_at" bson:"last_extracted_at"`
}

type Stats struct {
	TotalSegments          int        `json:"total_segments" yaml:"total_segments"`
	TotalVideos            int        `json:"total_videos" yaml:"total_videos"`
	TotalCollections       int        `json:"total_collections" yaml:"total_collections"`
	TotalSummaries         int        `json:"total_summaries" yaml:"total_summaries"`
	TotalTranscriptChars   int        `json:"total_transcript_chars" yaml:"total_transcript_chars"`
	TotalKnowledgeEntities int        `json:"total_knowledge_entities" yaml:"total_knowledge_entities"`
	LatestSegmentDate      *time.Time `json:"latest_segment_date" yaml:"latest_segment_date"`
	LatestSummaryDate      *time.Time `json:"latest_summary_date" yaml:"latest_summary_date"`
}

// Store is the persistence layer shared by the CLI and the HTTP server.
type Store interface {
	SaveSegment(ctx context.Context, seg *Segment) (string, error)
	GetSegment(ctx context.Context, id string) (*Segment, error)
	SearchSegments(ctx context.Context, q SearchQuery) ([]Segment, error)
	GetVideoSegments(ctx context.Context, videoID string) ([]Segment, error)
	GetVideo(ctx context.Context, videoID string) (*Video, error)
	UpdateSegment(ctx context.Context, id string, update SegmentUpdate) error
	DeleteSegment(ctx context.Context, id string) error
	CreateCollection(ctx context.Context, name, description string, segmentIDs []string) (string, error)
	GetCollection(ctx context.Context, id string) (*Collection, error)
	Stats(ctx context.Context) (*Stats, error)
	Close(ctx context.Context) error
}

// Open connects to the backend named in cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendSQLite, "":
		return NewSQLiteStore(cfg.SQLite.Path)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// prepareNew fills identity, timestamps and derived counters of a segment
// about to be inserted.
func prepareNew(seg *Segment, now time.Time) {
	seg.SegmentID = uuid.New().String()
	seg.CreatedAt = now
	seg.UpdatedAt = now

	if seg.Duration == 0 && seg.EndTime > seg.StartTime {
		seg.Duration = seg.EndTime - seg.StartTime
	}
	if seg.CharacterCount == 0 {
		seg.CharacterCount = len(seg.Transcription)
	}
	if seg.ProcessingMetadata.ExtractionType == "" {
		seg.ProcessingMetadata.ExtractionType = ExtractionType
	}
	if seg.ProcessingMetadata.ProcessedAt.IsZero() {
		seg.ProcessingMetadata.ProcessedAt = now
	}

	seg.Books = nonNil(seg.Books)
	seg.People = nonNil(seg.People)
	seg.Places = nonNil(seg.Places)
	seg.Facts = nonNil(seg.Facts)
	seg.Topics = nonNil(seg.Topics)
	seg.Tags = nonNil(seg.Tags)
}

func newCollection(name, description string, segmentIDs []string, now time.Time) (*Collection, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	segmentIDs = nonNil(segmentIDs)
	return &Collection{
		CollectionID: uuid.New().String(),
		Name:         name,
		Description:  description,
		SegmentIDs:   segmentIDs,
		SegmentCount: len(segmentIDs),
		Tags:         []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// accumulate folds one segment into stats
func (s *Stats) accumulate(seg *Segment) {
	s.TotalSegments++
	s.TotalTranscriptChars += seg.CharacterCount
	s.LatestSegmentDate = later(s.LatestSegmentDate, seg.CreatedAt)

	if seg.Summary != "" {
		s.TotalSummaries++
		s.TotalKnowledgeEntities += seg.EntityCount()
		s.LatestSummaryDate = later(s.LatestSummaryDate, seg.CreatedAt)
	}
}

func later(current *time.Time, t time.Time) *time.Time {
	if t.IsZero() {
		return current
	}
	if current == nil || t.After(*current) {
		return &t
	}
	return current
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func encodeList(items []string) (string, error) {
	b, err := json.Marshal(nonNil(items))
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func now() time.Time {
	return time.Now().UTC()
}
