package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/mgpai22/smriti/internal/youtube"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	innertubeClientName    = "ANDROID"
	innertubeClientVersion = "20.10.38"
)

var apiKeyPattern = regexp.MustCompile(`"INNERTUBE_API_KEY":\s*"([a-zA-Z0-9_-]+)"`)

// YouTubeConfig holds configuration for the YouTube caption client
type YouTubeConfig struct {
	BaseURL       string        // Default: https://www.youtube.com
	Timeout       time.Duration // Default: 30s
	RatePerSecond float64       // Default: 2
	Burst         int           // Default: 1
	UserAgent     string
}

// one caption track advertised by the player
type CaptionTrack struct {
	LanguageCode string `json:"language_code" yaml:"language_code"`
	Name         string `json:"name" yaml:"name"`
	Generated    bool   `json:"generated" yaml:"generated"`
	BaseURL      string `json:"-" yaml:"-"`
}

// watch page and player metadata for one video
type VideoInfo struct {
	ID     string         `json:"video_id" yaml:"video_id"`
	Title  string         `json:"title" yaml:"title"`
	Tracks []CaptionTrack `json:"tracks" yaml:"tracks"`
}

// YouTubeSource fetches captions through the innertube player API
type YouTubeSource struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	userAgent   string
}

func NewYouTubeSource(cfg YouTubeConfig) *YouTubeSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &YouTubeSource{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:   cfg.UserAgent,
	}
}

// Fetch downloads the best matching caption track for videoID.
func (s *YouTubeSource) Fetch(
	ctx context.Context,
	videoID string,
	languages []string,
) ([]youtube.CaptionEntry, error) {
	if len(languages) == 0 {
		languages = youtube.DefaultLanguages
	}

	info, err := s.Info(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track, ok := SelectTrack(info.Tracks, languages)
	if !ok {
		return nil, fmt.Errorf("%w: no caption tracks for %s", ErrTranscriptUnavailable, videoID)
	}

	body, err := s.get(ctx, s.trackURL(track.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch %s captions: %w", track.LanguageCode, err)
	}

	entries, err := ParseTimedText(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty %s track for %s", ErrTranscriptUnavailable, track.LanguageCode, videoID)
	}
	return entries, nil
}

// Info loads the watch page and player response for videoID.
func (s *YouTubeSource) Info(ctx context.Context, videoID string) (*VideoInfo, error) {
	page, err := s.get(ctx, s.baseURL+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	match := apiKeyPattern.FindSubmatch(page)
	if match == nil {
		if bytes.Contains(page, []byte(`class="g-recaptcha"`)) {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: innertube api key not found for %s", ErrVideoUnavailable, videoID)
	}

	player, err := s.player(ctx, string(match[1]), videoID)
	if err != nil {
		return nil, err
	}

	tracks, err := parsePlayerResponse(player, videoID)
	if err != nil {
		return nil, err
	}

	return &VideoInfo{
		ID:     videoID,
		Title:  PageTitle(page),
		Tracks: tracks,
	}, nil
}

func (s *YouTubeSource) player(ctx context.Context, apiKey, videoID string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]string{
				"clientName":    innertubeClientName,
				"clientVersion": innertubeClientVersion,
			},
		},
		"videoId": videoID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode player request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/youtubei/v1/player?key=%s", s.baseURL, url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("player request: %w", err)
	}
	return body, nil
}

// parsePlayerResponse reads the playability status and caption tracks out
// of an innertube player response.
func parsePlayerResponse(body []byte, videoID string) ([]CaptionTrack, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid player response for %s", videoID)
	}
	resp := gjson.ParseBytes(body)

	status := resp.Get("playabilityStatus.status").String()
	switch status {
	case "OK":
	case "":
		return nil, fmt.Errorf("%w: no playability status for %s", ErrTranscriptUnavailable, videoID)
	default:
		reason := resp.Get("playabilityStatus.reason").String()
		return nil, fmt.Errorf("%w: %s %s", ErrVideoUnavailable, strings.ToLower(status), reason)
	}

	var tracks []CaptionTrack
	resp.Get("captions.playerCaptionsTracklistRenderer.captionTracks").ForEach(func(_, t gjson.Result) bool {
		name := t.Get("name.simpleText").String()
		if name == "" {
			name = t.Get("name.runs.0.text").String()
		}
		tracks = append(tracks, CaptionTrack{
			LanguageCode: t.Get("languageCode").String(),
			Name:         name,
			Generated:    t.Get("kind").String() == "asr",
			BaseURL:      t.Get("baseUrl").String(),
		})
		return true
	})

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: captions disabled for %s", ErrTranscriptUnavailable, videoID)
	}
	return tracks, nil
}

// SelectTrack prefers a manually created track in the first matching
// language, then a generated one, then whatever is listed first.
func SelectTrack(tracks []CaptionTrack, languages []string) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}

	for _, generated := range []bool{false, true} {
		for _, lang := range languages {
			for _, t := range tracks {
				if t.Generated == generated && t.LanguageCode == lang {
					return t, true
				}
			}
		}
	}

	return tracks[0], true
}

func (s *YouTubeSource) trackURL(baseURL string) string {
	baseURL = strings.Replace(baseURL, "&fmt=srv3", "", 1)
	if strings.HasPrefix(baseURL, "/") {
		return s.baseURL + baseURL
	}
	return baseURL
}

// ParseTimedText parses a timedtext XML document into caption entries.
func ParseTimedText(r io.Reader) ([]youtube.CaptionEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}

	entries := []youtube.CaptionEntry{}
	var parseErr error
	doc.Find("text").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(html.UnescapeString(sel.Text()))
		if text == "" {
			return true
		}
		start, err := timedTextSeconds(sel, "start")
		if err != nil {
			parseErr = err
			return false
		}
		dur, err := timedTextSeconds(sel, "dur")
		if err != nil {
			parseErr = err
			return false
		}
		entries = append(entries, youtube.CaptionEntry{
			Start:    start,
			Duration: dur,
			Text:     text,
		})
		return true
	})
	if parseErr != nil {
		return nil, fmt.Errorf("parse timedtext: %w", parseErr)
	}

	return entries, nil
}

// missing attributes count as 0; anything else must be a finite, non-negative number
func timedTextSeconds(sel *goquery.Selection, attr string) (float64, error) {
	raw := strings.TrimSpace(sel.AttrOr(attr, "0"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid %s %q", attr, raw)
	}
	return v, nil
}

// PageTitle pulls the video title out of a watch page.
func PageTitle(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && title != "" {
		return strings.TrimSpace(title)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
}

func (s *YouTubeSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return s.do(req)
}

// do waits on the limiter, sends req and returns the body of a 200 response
func (s *YouTubeSource) do(req *http.Request) ([]byte, error) {
	if err := s.rateLimiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
