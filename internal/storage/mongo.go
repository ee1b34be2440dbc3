package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	segmentsCollection    = "segments"
	videosCollection      = "videos"
	collectionsCollection = "collections"
)

// MongoStore keeps documents in the segments, videos and collections
// collections of one database
type MongoStore struct {
	client      *mongo.Client
	segments    *mongo.Collection
	videos      *mongo.Collection
	collections *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("mongo uri and database are required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:      client,
		segments:    db.Collection(segmentsCollection),
		videos:      db.Collection(videosCollection),
		collections: db.Collection(collectionsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.segments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "segment_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "start_time", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create segment indexes: %w", err)
	}

	_, err = s.collections.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "collection_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveSegment(ctx context.Context, seg *Segment) (string, error) {
	ts := now()
	prepareNew(seg, ts)

	if _, err := s.segments.InsertOne(ctx, seg); err != nil {
		return "", fmt.Errorf("failed to save segment: %w", err)
	}

	_, err := s.videos.UpdateOne(ctx,
		bson.M{"video_id": seg.VideoID},
		bson.M{
			"$set": bson.M{"video_id": seg.VideoID, "last_extracted_at": ts},
			"$inc": bson.M{"segment_count": 1},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to update video %s: %w", seg.VideoID, err)
	}

	return seg.SegmentID, nil
}

func (s *MongoStore) GetSegment(ctx context.Context, id string) (*Segment, error) {
	var seg Segment
	if err := s.segments.FindOne(ctx, bson.M{"segment_id": id}).Decode(&seg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get segment %s: %w", id, err)
	}
	return &seg, nil
}

// mongoSearchFilter pushes every SearchQuery filter down to the server.
func mongoSearchFilter(q SearchQuery) bson.M {
	filter := bson.M{}

	if q.VideoID != "" {
		filter["video_id"] = q.VideoID
	}
	if len(q.Tags) > 0 {
		filter["tags"] = bson.M{"$in": q.Tags}
	}

	duration := bson.M{}
	if q.MinDuration != nil {
		duration["$gte"] = *q.MinDuration
	}
	if q.MaxDuration != nil {
		duration["$lte"] = *q.MaxDuration
	}
	if len(duration) > 0 {
		filter["duration"] = duration
	}

	if text := strings.TrimSpace(q.Query); text != "" {
		match := bson.M{"$regex": regexp.QuoteMeta(text), "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"summary": match},
			bson.M{"transcription": match},
		}
	}

	return filter
}

func (s *MongoStore) SearchSegments(ctx context.Context, q SearchQuery) ([]Segment, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(q.limit()))

	return s.find(ctx, mongoSearchFilter(q), opts)
}

func (s *MongoStore) GetVideoSegments(ctx context.Context, videoID string) ([]Segment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return s.find(ctx, bson.M{"video_id": videoID}, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Segment, error) {
	cursor, err := s.segments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer cursor.Close(ctx)

	segments := []Segment{}
	for cursor.Next(ctx) {
		var seg Segment
		if err := cursor.Decode(&seg); err != nil {
			return nil, fmt.Errorf("failed to decode segment: %w", err)
		}
		segments = append(segments, seg)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return segments, nil
}

func (s *MongoStore) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	var video Video
	if err := s.videos.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&video); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get video %s: %w", videoID, err)
	}
	return &video, nil
}

func (s *MongoStore) UpdateSegment(ctx context.Context, id string, update SegmentUpdate) error {
	set := bson.M{"updated_at": now()}
	if update.Tags != nil {
		set["tags"] = nonNil(*update.Tags)
	}
	if update.UserNotes != nil {
		set["user_notes"] = *update.UserNotes
	}
	if update.Summary != nil {
		set["summary"] = *update.Summary
	}

	result, err := s.segments.UpdateOne(ctx, bson.M{"segment_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update segment %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) DeleteSegment(ctx context.Context, id string) error {
	result, err := s.segments.DeleteOne(ctx, bson.M{"segment_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete segment %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) CreateCollection(ctx context.Context, name, description string, segmentIDs []string) (string, error) {
	collection, err := newCollection(name, description, segmentIDs, now())
	if err != nil {
		return "", err
	}
	if _, err := s.collections.InsertOne(ctx, collection); err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}
	return collection.CollectionID, nil
}

func (s *MongoStore) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var collection Collection
	if err := s.collections.FindOne(ctx, bson.M{"collection_id": id}).Decode(&collection); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get collection %s: %w", id, err)
	}
	return &collection, nil
}

func (s *MongoStore) Stats(ctx context.Context) (*Stats, error) {
	projection := bson.M{
		"video_id": 1, "summary": 1, "character_count": 1, "created_at": 1,
		"books": 1, "people": 1, "places": 1, "facts": 1, "topics": 1,
	}
	segments, err := s.find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	videos := make(map[string]struct{})
	for i := range segments {
		stats.accumulate(&segments[i])
		videos[segments[i].VideoID] = struct{}{}
	}
	stats.TotalVideos = len(videos)

	collections, err := s.collections.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count collections: %w", err)
	}
	stats.TotalCollections = int(collections)

	return stats, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
