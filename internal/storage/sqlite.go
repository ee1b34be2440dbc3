package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore is the embedded default backend
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// ":memory:" gives a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if dir := filepath.Dir(path); path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if path == ":memory:" {
		// every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewSQLiteStoreFromDB(db)
}

// NewSQLiteStoreFromDB wraps an existing gorm connection.
func NewSQLiteStoreFromDB(db *gorm.DB) (*SQLiteStore, error) {
	if err := db.AutoMigrate(&Segment{}, &Video{}, &Collection{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSegment(ctx context.Context, seg *Segment) (string, error) {
	ts := now()
	prepareNew(seg, ts)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(seg).Error; err != nil {
			return fmt.Errorf("failed to save segment: %w", err)
		}

		video := Video{VideoID: seg.VideoID, SegmentCount: 1, LastExtractedAt: ts}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "video_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"segment_count":     gorm.Expr("segment_count + 1"),
				"last_extracted_at": ts,
			}),
		}).Create(&video).Error
	})
	if err != nil {
		return "", err
	}

	return seg.SegmentID, nil
}

func (s *SQLiteStore) GetSegment(ctx context.Context, id string) (*Segment, error) {
	var seg Segment
	if err := s.db.WithContext(ctx).First(&seg, "segment_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &seg, nil
}

func (s *SQLiteStore) SearchSegments(ctx context.Context, q SearchQuery) ([]Segment, error) {
	tx := s.db.WithContext(ctx).Model(&Segment{})

	if q.VideoID != "" {
		tx = tx.Where("video_id = ?", q.VideoID)
	}
	if len(q.Tags) > 0 {
		tx = tx.Where("EXISTS (SELECT 1 FROM json_each(segments.tags) WHERE json_each.value IN ?)", q.Tags)
	}
	if q.MinDuration != nil {
		tx = tx.Where("duration >= ?", *q.MinDuration)
	}
	if q.MaxDuration != nil {
		tx = tx.Where("duration <= ?", *q.MaxDuration)
	}
	if text := strings.TrimSpace(q.Query); text != "" {
		pattern := "%" + strings.ToLower(text) + "%"
		tx = tx.Where("LOWER(summary) LIKE ? OR LOWER(transcription) LIKE ?", pattern, pattern)
	}

	var segments []Segment
	if err := tx.Order("created_at DESC").Limit(q.limit()).Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("failed to search segments: %w", err)
	}
	return segments, nil
}

func (s *SQLiteStore) GetVideoSegments(ctx context.Context, videoID string) ([]Segment, error) {
	var segments []Segment
	err := s.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("start_time ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get segments for video %s: %w", videoID, err)
	}
	return segments, nil
}

func (s *SQLiteStore) UpdateSegment(ctx context.Context, id string, update SegmentUpdate) error {
	updates := map[string]any{"updated_at": now()}
	if update.Tags != nil {
		// serializer tags only apply to struct fields, so encode by hand
		tags, err := encodeList(*update.Tags)
		if err != nil {
			return err
		}
		updates["tags"] = tags
	}
	if update.UserNotes != nil {
		updates["user_notes"] = *update.UserNotes
	}
	if update.Summary != nil {
		updates["summary"] = *update.Summary
	}

	result := s.db.WithContext(ctx).Model(&Segment{}).Where("segment_id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update segment %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteSegment(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&Segment{}, "segment_id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete segment %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name, description string, segmentIDs []string) (string, error) {
	collection, err := newCollection(name, description, segmentIDs, now())
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Create(collection).Error; err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}
	return collection.CollectionID, nil
}

func (s *SQLiteStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var collection Collection
	if err := s.db.WithContext(ctx).First(&collection, "collection_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &collection, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{}

	var segments []Segment
	if err := db.Select(
		"segment_id", "video_id", "summary", "character_count", "created_at",
		"books", "people", "places", "facts", "topics",
	).Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("failed to load segments: %w", err)
	}

	videos := make(map[string]struct{})
	for i := range segments {
		stats.accumulate(&segments[i])
		videos[segments[i].VideoID] = struct{}{}
	}
	stats.TotalVideos = len(videos)

	var collections int64
	if err := db.Model(&Collection{}).Count(&collections).Error; err != nil {
		return nil, fmt.Errorf("failed to count collections: %w", err)
	}
	stats.TotalCollections = int(collections)

	return stats, nil
}

func (s *SQLiteStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var video Video
	if err := s.db.WithContext(ctx).First(&video, "video_id = ?", videoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		return nil, err
	}
	return &video, nil
}

func (s *SQLiteStore) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL database: %w", err)
	}
	return sqlDB.Close()
}
