package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultLanguage = "en"

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// Client fetches caption tracks for a video.
// Primary:  scrape the watch page ytInitialPlayerResponse -> caption XML
// Fallback: ANDROID Innertube /player -> captionTracks
type Client struct {
	httpClient *http.Client
	watchURL   string
	playerURL  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides the watch page and Innertube player URLs.
func WithEndpoints(watch, player string) Option {
	return func(c *Client) {
		c.watchURL = watch
		c.playerURL = player
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		watchURL:   watchURL,
		playerURL:  innertubePlayer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the full transcript text of videoID in lang (default "en").
// The result is never cached.
func (c *Client) Fetch(ctx context.Context, videoID, lang string) (string, error) {
	if !videoIDRe.MatchString(videoID) {
		return "", fmt.Errorf("%w: bad video id %q", ErrInvalidURL, videoID)
	}
	if lang == "" {
		lang = DefaultLanguage
	}

	text, scrapeErr := c.fetchViaPageScrape(ctx, videoID, lang)
	if scrapeErr == nil {
		return text, nil
	}
	log.Warn().Str("video_id", videoID).Err(scrapeErr).Msg("youtube: page scrape failed, trying player")

	text, playerErr := c.fetchViaPlayer(ctx, videoID, lang)
	if playerErr == nil {
		return text, nil
	}
	return "", fmt.Errorf("fetch transcript for %s: %w", videoID, errors.Join(scrapeErr, playerErr))
}

func (c *Client) fetchViaPageScrape(ctx context.Context, videoID, lang string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.watchURL+"?v="+url.QueryEscape(videoID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgentChrome)
	req.Header.Set("Accept-Language", lang+";q=0.9,en;q=0.8")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	body, err := c.do(req, maxWatchPageBytes)
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return "", errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var player playerResponse
	if err := json.Unmarshal(jsonData, &player); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return c.transcriptFromPlayer(ctx, &player, lang)
}

func (c *Client) fetchViaPlayer(ctx context.Context, videoID, lang string) (string, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                lang,
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.playerURL+"?prettyPrint=false", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ytAndroidUA)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)

	body, err := c.do(req, maxWatchPageBytes)
	if err != nil {
		return "", fmt.Errorf("android innertube: %w", err)
	}

	var player playerResponse
	if err := json.Unmarshal(body, &player); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	return c.transcriptFromPlayer(ctx, &player, lang)
}

func (c *Client) transcriptFromPlayer(ctx context.Context, player *playerResponse, lang string) (string, error) {
	tracks := player.tracks()
	if len(tracks) == 0 {
		if reason := player.unplayableReason(); reason != "" {
			return "", fmt.Errorf("%w: %s", ErrTranscriptUnavailable, reason)
		}
		return "", fmt.Errorf("%w: captions are disabled", ErrTranscriptUnavailable)
	}
	track, ok := pickBestTrack(tracks, lang)
	if !ok {
		return "", fmt.Errorf("%w: no usable %q caption track", ErrTranscriptUnavailable, lang)
	}
	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty caption track", ErrTranscriptUnavailable)
	}
	return text, nil
}

// fetchTimedText downloads a timedtext XML caption track and joins its lines with spaces.
func (c *Client) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgentChrome)

	body, err := c.do(req, maxTimedTextBytes)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := cleanCaption(line.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func (c *Client) do(req *http.Request, limit int64) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// needsPoToken reports whether a caption track URL can only be fetched from a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

func langMatches(code, lang string) bool {
	return code == lang || strings.HasPrefix(code, lang+"-")
}

// pickBestTrack prefers a manual track in lang, then an auto-generated one.
// Tracks in other languages are never picked.
func pickBestTrack(tracks []captionTrack, lang string) (captionTrack, bool) {
	var auto *captionTrack
	for i, t := range tracks {
		if needsPoToken(t.BaseURL) || !langMatches(t.LanguageCode, lang) {
			continue
		}
		if t.Kind != "asr" {
			return t, true
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto, true
	}
	return captionTrack{}, false
}

// cleanCaption unescapes entities left by the XML decoder, strips tags and collapses whitespace.
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	s = htmlTagRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// extractJSON returns the JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, ch := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
