package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvasconcellos/driveup/internal/replicate"
)

func TestEncodeFeedEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   replicate.Event
		want feedEvent
	}{
		{
			name: "scan complete",
			ev:   replicate.ScanCompleteEvent{FileCount: 3, TotalBytes: 300},
			want: feedEvent{Type: "scan_complete", FileCount: 3, TotalBytes: 300},
		},
		{
			name: "status",
			ev:   replicate.StatusEvent{Message: "Starting upload..."},
			want: feedEvent{Type: "status", Message: "Starting upload..."},
		},
		{
			name: "file progress",
			ev:   replicate.FileProgressEvent{Path: "a.txt", Percent: 40, Size: 100},
			want: feedEvent{Type: "file_progress", Path: "a.txt", Percent: 40, Size: 100},
		},
		{
			name: "failed outcome carries error text",
			ev: replicate.FileOutcomeEvent{
				Path: "a.txt", Size: 100,
				Outcome: replicate.OutcomeFailed, Err: errors.New("boom"),
			},
			want: feedEvent{Type: "file_outcome", Path: "a.txt", Size: 100, Outcome: "failed", Error: "boom"},
		},
		{
			name: "finished",
			ev:   replicate.FinishedEvent{Success: true, FilesUploaded: 3, BytesUploaded: 300},
			want: feedEvent{Type: "finished", Success: true, FilesUploaded: 3, BytesUploaded: 300},
		},
		{
			name: "overall progress",
			ev:   replicate.OverallProgressEvent{FilesDone: 1, BytesDone: 100},
			want: feedEvent{Type: "overall_progress", FilesDone: 1, BytesDone: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, encodeFeedEvent(tt.ev))
		})
	}
}

func TestEventFeed_BroadcastReachesSubscriber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feed, err := startEventFeed(ctx, "127.0.0.1:0", logger)
	require.NoError(t, err)
	defer feed.Close()

	conn, _, err := websocket.Dial(ctx, "ws://"+feed.Addr()+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The subscriber registers during the handshake; poll until the
	// server sees it before broadcasting.
	require.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()

		return len(feed.conns) == 1
	}, 5*time.Second, 10*time.Millisecond)

	feed.Broadcast(replicate.FileProgressEvent{Path: "a.txt", Percent: 25, Size: 400})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var got feedEvent
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, "file_progress", got.Type)
	assert.Equal(t, "a.txt", got.Path)
	assert.Equal(t, 25, got.Percent)
	assert.Equal(t, int64(400), got.Size)
}

func TestEventFeed_BroadcastWithNoSubscribers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feed, err := startEventFeed(ctx, "127.0.0.1:0", logger)
	require.NoError(t, err)
	defer feed.Close()

	// Must not block or panic.
	feed.Broadcast(replicate.StatusEvent{Message: "hello"})
}
