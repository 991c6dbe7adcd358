package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	const origin = "https://www.douyin.com"
	tests := []struct {
		href string
		want string
	}{
		{"//www.douyin.com/video/123", "https://www.douyin.com/video/123"},
		{"/video/123", "https://www.douyin.com/video/123"},
		{"https://www.douyin.com/video/123", "https://www.douyin.com/video/123"},
		{"  /video/9  ", "https://www.douyin.com/video/9"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.href, origin), "href %q", tt.href)
	}
}

func TestNormalizeURL_TrailingSlashOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com/video/1", NormalizeURL("/video/1", "https://example.com/"))
}

func TestSeenSet(t *testing.T) {
	seen := NewSeenSet()
	assert.True(t, seen.Add("https://www.douyin.com/video/1"))
	assert.False(t, seen.Add("https://www.douyin.com/video/1"))
	assert.True(t, seen.Contains("https://www.douyin.com/video/1"))
	assert.False(t, seen.Contains("https://www.douyin.com/video/2"))
	assert.Equal(t, 1, seen.Len())
}
