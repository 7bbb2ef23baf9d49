package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{61 * time.Second, "00:01:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{25 * time.Hour, "25:00:00"},
		{-time.Second, "00:00:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), "duration %v", tt.d)
	}
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "--:--:--", formatETA(0, false))
	assert.Equal(t, "00:00:00", formatETA(0, true))
	assert.Equal(t, "00:01:30", formatETA(90*time.Second, true))
}

func TestFormatTime_Zero(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
}

func TestFormatTime_Layout(t *testing.T) {
	ts := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, formatTime(ts))
}

func TestFormatSize_Delegates(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(0))
	assert.Equal(t, "1.0 KB", formatSize(1024))
}
