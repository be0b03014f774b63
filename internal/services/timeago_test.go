package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		age  time.Duration
		want string
	}{
		{"now", 0, "Just now"},
		{"seconds", 59 * time.Second, "Just now"},
		{"one minute", time.Minute, "1m ago"},
		{"minutes", 42 * time.Minute, "42m ago"},
		{"hours", 5*time.Hour + 59*time.Minute, "5h ago"},
		{"days", 50 * time.Hour, "2d ago"},
		{"future", -time.Hour, "Just now"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeAgo(now.Add(-tt.age), now))
		})
	}
}

func TestPostCountLabel(t *testing.T) {
	assert.Equal(t, "0 posts", PostCountLabel(0))
	assert.Equal(t, "1 post", PostCountLabel(1))
	assert.Equal(t, "12 posts", PostCountLabel(12))
	assert.Equal(t, "1,024 posts", PostCountLabel(1024))
}
