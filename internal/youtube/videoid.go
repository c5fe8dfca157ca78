package youtube

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrInvalidURL is returned when no video identifier can be extracted from a URL.
	ErrInvalidURL = errors.New("invalid youtube url")
	// ErrTranscriptUnavailable is returned when captions are disabled or missing for the language.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")
)

var (
	videoIDRe    = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	looseVideoRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
)

// path prefixes that carry the id as the next path segment
var idPathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

// ExtractVideoID returns the 11-character video id carried by rawURL. Watch, youtu.be, embed,
// v, shorts and live forms are recognised; anything else falls back to a loose match.
func ExtractVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrInvalidURL
	}

	if u, err := url.Parse(rawURL); err == nil {
		if id := videoIDFromURL(u); id != "" {
			return id, nil
		}
	}

	if m := looseVideoRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidURL
}

func videoIDFromURL(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	switch host {
	case "www.youtube.com", "youtube.com", "m.youtube.com", "music.youtube.com", "www.youtube-nocookie.com":
		if u.Path == "/watch" {
			return validID(u.Query().Get("v"))
		}
		for _, prefix := range idPathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				segment := strings.TrimPrefix(u.Path, prefix)
				segment, _, _ = strings.Cut(segment, "/")
				return validID(segment)
			}
		}
	case "youtu.be":
		segment := strings.TrimPrefix(u.Path, "/")
		segment, _, _ = strings.Cut(segment, "/")
		return validID(segment)
	}
	return ""
}

func validID(id string) string {
	if videoIDRe.MatchString(id) {
		return id
	}
	return ""
}
