package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/mvasconcellos/driveup/internal/replicate"
)

// feedWriteTimeout bounds a broadcast write to one subscriber. A client
// that cannot keep up is dropped rather than stalling the event loop.
const feedWriteTimeout = 2 * time.Second

// resolveFeedAddr maps the --feed flag to a listen address. Empty means
// no feed; the value "auto" selects the configured feed.listen address.
func resolveFeedAddr(flagValue string) string {
	if flagValue == "auto" {
		return resolvedCfg.Feed.Listen
	}

	return flagValue
}

// feedEvent is the JSON wire shape of one replication event.
type feedEvent struct {
	Type          string `json:"type"`
	Message       string `json:"message,omitempty"`
	Path          string `json:"path,omitempty"`
	Percent       int    `json:"percent,omitempty"`
	Size          int64  `json:"size,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Error         string `json:"error,omitempty"`
	FileCount     int    `json:"file_count,omitempty"`
	TotalBytes    int64  `json:"total_bytes,omitempty"`
	FilesDone     int    `json:"files_done,omitempty"`
	BytesDone     int64  `json:"bytes_done,omitempty"`
	Success       bool   `json:"success,omitempty"`
	FilesUploaded int    `json:"files_uploaded,omitempty"`
	BytesUploaded int64  `json:"bytes_uploaded,omitempty"`
}

// encodeFeedEvent maps a replication event onto the wire shape.
func encodeFeedEvent(ev replicate.Event) feedEvent {
	switch e := ev.(type) {
	case replicate.ScanCompleteEvent:
		return feedEvent{Type: "scan_complete", FileCount: e.FileCount, TotalBytes: e.TotalBytes}
	case replicate.StatusEvent:
		return feedEvent{Type: "status", Message: e.Message}
	case replicate.FolderEvent:
		return feedEvent{Type: "folder", Path: e.Path}
	case replicate.FileProgressEvent:
		return feedEvent{Type: "file_progress", Path: e.Path, Percent: e.Percent, Size: e.Size}
	case replicate.FileOutcomeEvent:
		fe := feedEvent{Type: "file_outcome", Path: e.Path, Size: e.Size, Outcome: string(e.Outcome)}
		if e.Err != nil {
			fe.Error = e.Err.Error()
		}

		return fe
	case replicate.OverallProgressEvent:
		return feedEvent{Type: "overall_progress", FilesDone: e.FilesDone, BytesDone: e.BytesDone}
	case replicate.FatalErrorEvent:
		return feedEvent{Type: "fatal_error", Message: e.Message}
	case replicate.FinishedEvent:
		return feedEvent{Type: "finished", Success: e.Success, FilesUploaded: e.FilesUploaded, BytesUploaded: e.BytesUploaded}
	default:
		return feedEvent{Type: "unknown"}
	}
}

// eventFeed broadcasts replication events to WebSocket subscribers.
type eventFeed struct {
	logger *slog.Logger
	srv    *http.Server
	group  *errgroup.Group
	addr   string

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Addr returns the bound listen address, useful when the configured
// address requested an ephemeral port.
func (f *eventFeed) Addr() string {
	return f.addr
}

// startEventFeed binds addr and serves the /events WebSocket endpoint.
func startEventFeed(ctx context.Context, addr string, logger *slog.Logger) (*eventFeed, error) {
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("feed: binding %s: %w", addr, err)
	}

	f := &eventFeed{
		logger: logger,
		addr:   listener.Addr().String(),
		conns:  make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /events", f.handleSubscribe)

	f.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	f.group, _ = errgroup.WithContext(ctx)
	f.group.Go(func() error {
		if serveErr := f.srv.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}

		return nil
	})

	logger.Info("event feed listening", slog.String("addr", listener.Addr().String()))

	return f, nil
}

// handleSubscribe upgrades a request and registers the connection. The
// handler blocks until the client disconnects; subscribers only read.
func (f *eventFeed) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		f.logger.Warn("feed: subscriber handshake failed", slog.String("error", err.Error()))
		return
	}

	f.mu.Lock()
	f.conns[conn] = struct{}{}
	f.mu.Unlock()

	f.logger.Info("feed: subscriber connected", slog.String("remote", r.RemoteAddr))

	// Reads surface client close; subscribers never send data we use.
	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	f.drop(conn)
	f.logger.Info("feed: subscriber disconnected", slog.String("remote", r.RemoteAddr))
}

// Broadcast sends one event to every subscriber. Called from the event
// consumer goroutine; subscribers that fail or stall are dropped.
func (f *eventFeed) Broadcast(ev replicate.Event) {
	data, err := json.Marshal(encodeFeedEvent(ev))
	if err != nil {
		f.logger.Warn("feed: encoding event", slog.String("error", err.Error()))
		return
	}

	f.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.conns))
	for conn := range f.conns {
		conns = append(conns, conn)
	}
	f.mu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), feedWriteTimeout)

		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			f.drop(conn)
		}

		cancel()
	}
}

// drop unregisters and closes a connection. Idempotent.
func (f *eventFeed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	_, present := f.conns[conn]
	delete(f.conns, conn)
	f.mu.Unlock()

	if present {
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

// Close shuts the server down and disconnects all subscribers.
func (f *eventFeed) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.srv.Shutdown(shutdownCtx); err != nil {
		f.logger.Warn("feed: shutdown error", slog.String("error", err.Error()))
	}

	f.mu.Lock()
	for conn := range f.conns {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	f.conns = make(map[*websocket.Conn]struct{})
	f.mu.Unlock()

	if err := f.group.Wait(); err != nil {
		f.logger.Warn("feed: server error", slog.String("error", err.Error()))
	}
}
