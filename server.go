package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/events"
	"github.com/voxtype/voxtype/internal/frames"
	"github.com/voxtype/voxtype/internal/models"
	"github.com/voxtype/voxtype/internal/recording"
	"github.com/voxtype/voxtype/internal/server"
	"github.com/voxtype/voxtype/internal/state"
	"github.com/voxtype/voxtype/internal/waveform"
)

// Server is the HTTP server that carries the overlay WebSocket and the
// control REST API.
type Server struct {
	config   *config.Config
	machine  *state.Machine
	sessions *recording.Manager
	library  *models.Manager
	renderer *waveform.Renderer
	bus      *events.Bus
	commands *server.CommandHandler
	version  *VersionChecker
}

// NewServer wires the HTTP layer to the daemon's components. The capture
// and feedback seams let settings updates reach the running audio devices.
func NewServer(cfg *config.Config, machine *state.Machine, sessions *recording.Manager, library *models.Manager, renderer *waveform.Renderer, bus *events.Bus, capture server.DeviceSelector, feedback server.FeedbackConfigurer, version *VersionChecker) *Server {
	return &Server{
		config:   cfg,
		machine:  machine,
		sessions: sessions,
		library:  library,
		renderer: renderer,
		bus:      bus,
		commands: server.NewCommandHandler(cfg, machine, sessions, library, renderer, capture, feedback),
		version:  version,
	}
}

// handleWebSocket handles bidirectional WebSocket communication: commands
// in, rendered frames and lifecycle events out.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.UpgradeConnection(w, r)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	// Create buffered send channel for thread-safe writes.
	// Only the writer goroutine writes to the connection, preventing race conditions.
	send := make(chan any, 64)
	done := make(chan struct{})

	// Writer goroutine - sole writer to the connection
	go s.runWebSocketWriter(conn, send)

	// Reader goroutine - handles incoming commands
	go s.runWebSocketReader(r.Context(), conn, send, done)

	s.runWebSocketEventLoop(send, done)
}

// runWebSocketWriter writes messages from the send channel to the connection.
func (s *Server) runWebSocketWriter(conn server.WebSocketConn, send <-chan any) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("WebSocket close error", "error", err)
		}
	}()
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// runWebSocketReader reads commands from the connection and dispatches them.
func (s *Server) runWebSocketReader(ctx context.Context, conn server.WebSocketConn, send chan<- any, done chan<- struct{}) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in WebSocket reader", "panic", r)
		}
		close(done)
	}()

	for {
		var cmd server.WSCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		s.commands.Handle(ctx, cmd, send)
	}
}

// runWebSocketEventLoop streams rendered frames at the display rate and
// forwards lifecycle events until the client disconnects.
func (s *Server) runWebSocketEventLoop(send chan any, done <-chan struct{}) {
	frameTicker := time.NewTicker(frames.DefaultInterval)
	statusTicker := time.NewTicker(3 * time.Second)
	defer frameTicker.Stop()
	defer statusTicker.Stop()

	busCh := make(chan events.Event, 64)
	s.bus.Subscribe(busCh)
	defer s.bus.Unsubscribe(busCh)

	// trySend attempts to send a message, returning false if done is closed
	trySend := func(msg any) bool {
		select {
		case send <- msg:
			return true
		case <-done:
			return false
		}
	}

	// Send initial status
	if !trySend(s.buildStatus()) {
		close(send)
		return
	}

	for {
		select {
		case <-done:
			close(send)
			return
		case evt := <-busCh:
			if !trySend(evt) {
				close(send)
				return
			}
		case <-frameTicker.C:
			// Frames are droppable: skip this one if the client is
			// behind rather than stall the loop.
			select {
			case send <- s.renderer.Frame():
			case <-done:
				close(send)
				return
			default:
			}
		case <-statusTicker.C:
			if !trySend(s.buildStatus()) {
				close(send)
				return
			}
		}
	}
}

// Start begins the HTTP server.
// Returns an *http.Server that can be used for graceful shutdown.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf("127.0.0.1:%d", s.config.Port())
	slog.Info("starting server", "addr", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.SetupRoutes(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	return srv
}
