package services

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

var timeAgoMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "Just now", DivBy: 1},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: 24 * time.Hour, Format: "%dh %s", DivBy: time.Hour},
	{D: math.MaxInt64, Format: "%dd %s", DivBy: 24 * time.Hour},
}

// FormatTimeAgo renders the age of a post the way the wall shows it:
// "Just now", "5m ago", "3h ago", "2d ago". Future times count as now.
func FormatTimeAgo(then, now time.Time) string {
	if then.After(now) {
		then = now
	}
	return humanize.CustomRelTime(then, now, "ago", "from now", timeAgoMagnitudes)
}

func PostCountLabel(n int) string {
	if n == 1 {
		return "1 post"
	}
	return humanize.Comma(int64(n)) + " posts"
}
