package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID_SameIDForAllForms(t *testing.T) {
	urls := []string{
		"https://www.youtube.com/watch?v=ejGEddhynE0&t=2s",
		"https://www.youtube.com/watch?v=ejGEddhynE0",
		"https://youtube.com/watch?feature=share&v=ejGEddhynE0",
		"https://m.youtube.com/watch?v=ejGEddhynE0",
		"http://youtu.be/ejGEddhynE0",
		"https://youtu.be/ejGEddhynE0?t=42",
		"https://www.youtube.com/embed/ejGEddhynE0",
		"https://www.youtube.com/embed/ejGEddhynE0?autoplay=1",
		"https://www.youtube.com/v/ejGEddhynE0",
		"https://www.youtube.com/shorts/ejGEddhynE0",
		"https://www.youtube.com/live/ejGEddhynE0",
		"youtube.com/watch?v=ejGEddhynE0",
		"  https://www.youtube.com/watch?v=ejGEddhynE0  ",
	}
	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			id, err := ExtractVideoID(u)
			require.NoError(t, err)
			assert.Equal(t, "ejGEddhynE0", id)
		})
	}
}

func TestExtractVideoID_GenericFallback(t *testing.T) {
	// any 11-character id after "/" or "v=" is accepted, whatever the host
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/not-a-video", "not-a-video"},
		{"https://example.com/page?v=ejGEddhynE0", "ejGEddhynE0"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, err := ExtractVideoID(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestExtractVideoID_Invalid(t *testing.T) {
	urls := []string{
		"",
		"https://example.com/video",
		"not a url",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/",
	}
	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			_, err := ExtractVideoID(u)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}
