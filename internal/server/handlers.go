package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgpai22/smriti/internal/knowledge"
	"github.com/mgpai22/smriti/internal/youtube"
)

//go:embed web/index.html
var indexHTML []byte

// timeField accepts "1:29", "89" or 89.
type timeField string

func (t *timeField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = timeField(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("time must be a string or a number of seconds")
	}
	*t = timeField(n.String())
	return nil
}

type extractRequest struct {
	URL       string    `json:"url"`
	StartTime timeField `json:"start_time"`
	EndTime   timeField `json:"end_time"`
	Duration  timeField `json:"duration"`
	Save      bool      `json:"save"`
	Tags      []string  `json:"tags"`
	UserNotes string    `json:"user_notes"`
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":                "healthy",
		"openai_api_configured": s.deps.summarizerConfigured(),
		"storage_configured":    s.deps.Store != nil,
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendFailure(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		sendFailure(c, http.StatusBadRequest, "Please provide a YouTube URL")
		return
	}
	if !youtube.IsYouTubeURL(url) {
		sendFailure(c, http.StatusBadRequest, "Please provide a valid YouTube URL")
		return
	}
	if !s.deps.summarizerConfigured() {
		sendFailure(c, http.StatusServiceUnavailable, "OpenAI API not configured. Please set your OPENAI_API_KEY.")
		return
	}
	if req.Save && s.deps.Pipeline.Store == nil {
		sendFailure(c, http.StatusServiceUnavailable, "Storage is not configured")
		return
	}

	ytReq := youtube.Request{
		URL:      url,
		Start:    string(req.StartTime),
		End:      string(req.EndTime),
		Duration: string(req.Duration),
	}

	ctx := c.Request.Context()
	var (
		ext *knowledge.Extraction
		id  string
		err error
	)
	if req.Save {
		ext, id, err = s.deps.Pipeline.ProcessAndSave(ctx, ytReq, req.Tags, req.UserNotes)
	} else {
		ext, err = s.deps.Pipeline.Process(ctx, ytReq)
	}
	if err != nil {
		s.logger.Errorw("Extraction failed", "url", url, "error", err)
		sendFailure(c, statusFor(err), knowledge.FriendlyError(err))
		return
	}

	doc := ext.Document()
	doc.SegmentID = id
	c.JSON(http.StatusOK, gin.H{"success": true, "data": doc})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, youtube.ErrInvalidURL),
		errors.Is(err, youtube.ErrInvalidTimeFormat),
		errors.Is(err, youtube.ErrInvalidWindow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, key string) (*int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid "+key+" parameter")
		return nil, false
	}
	return &v, true
}

func sendFailure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}
