package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mgpai22/smriti/internal/storage"
)

const maxSearchLimit = 100

type collectionRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	SegmentIDs  []string `json:"segment_ids"`
}

// requireStore aborts with 503 when storage is disabled.
func (s *Server) requireStore(c *gin.Context) (storage.Store, bool) {
	if s.deps.Store == nil {
		sendError(c, http.StatusServiceUnavailable, "Storage is not configured")
		return nil, false
	}
	return s.deps.Store, true
}

func (s *Server) storeFailure(c *gin.Context, err error, what string) {
	if errors.Is(err, storage.ErrNotFound) {
		sendError(c, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Errorw("Storage operation failed", "error", err)
	sendError(c, http.StatusInternalServerError, "Failed to access storage")
}

func (s *Server) searchSegments(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	q := storage.SearchQuery{
		Query:   c.Query("q"),
		VideoID: c.Query("video_id"),
	}
	for _, tag := range strings.Split(c.Query("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			q.Tags = append(q.Tags, tag)
		}
	}

	var valid bool
	if q.MinDuration, valid = queryInt(c, "min_duration"); !valid {
		return
	}
	if q.MaxDuration, valid = queryInt(c, "max_duration"); !valid {
		return
	}
	limit, valid := queryInt(c, "limit")
	if !valid {
		return
	}
	if limit != nil {
		if *limit < 1 || *limit > maxSearchLimit {
			sendError(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		q.Limit = *limit
	}

	segments, err := store.SearchSegments(c.Request.Context(), q)
	if err != nil {
		s.storeFailure(c, err, "Segments")
		return
	}
	if segments == nil {
		segments = []storage.Segment{}
	}

	c.JSON(http.StatusOK, gin.H{"segments": segments, "count": len(segments)})
}

func (s *Server) getSegment(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	seg, err := store.GetSegment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeFailure(c, err, "Segment")
		return
	}
	c.JSON(http.StatusOK, seg)
}

func (s *Server) updateSegment(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	var update storage.SegmentUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if update.IsEmpty() {
		sendError(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := store.UpdateSegment(ctx, id, update); err != nil {
		s.storeFailure(c, err, "Segment")
		return
	}

	seg, err := store.GetSegment(ctx, id)
	if err != nil {
		s.storeFailure(c, err, "Segment")
		return
	}
	c.JSON(http.StatusOK, seg)
}

func (s *Server) deleteSegment(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	if err := store.DeleteSegment(c.Request.Context(), c.Param("id")); err != nil {
		s.storeFailure(c, err, "Segment")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getVideoSegments(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	videoID := c.Param("video_id")

	segments, err := store.GetVideoSegments(ctx, videoID)
	if err != nil {
		s.storeFailure(c, err, "Video")
		return
	}
	if len(segments) == 0 {
		sendError(c, http.StatusNotFound, "No segments stored for this video")
		return
	}

	response := gin.H{"video_id": videoID, "segments": segments, "count": len(segments)}
	if video, err := store.GetVideo(ctx, videoID); err == nil {
		response["last_extracted_at"] = video.LastExtractedAt
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) stats(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	stats, err := store.Stats(c.Request.Context())
	if err != nil {
		s.storeFailure(c, err, "Stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) createCollection(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		sendError(c, http.StatusBadRequest, "Collection name is required")
		return
	}

	id, err := store.CreateCollection(c.Request.Context(), req.Name, req.Description, req.SegmentIDs)
	if err != nil {
		s.storeFailure(c, err, "Collection")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection_id": id})
}

func (s *Server) getCollection(c *gin.Context) {
	store, ok := s.requireStore(c)
	if !ok {
		return
	}

	collection, err := store.GetCollection(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeFailure(c, err, "Collection")
		return
	}
	c.JSON(http.StatusOK, collection)
}
