// Package preview serves a workspace's published tree to a browser, relays
// the sandbox protocol over websockets and exposes a small JSON API for
// driving tasks.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/studio"
)

// Options configures a Server.
type Options struct {
	Addr string
	// Pprof mounts net/http/pprof under /debug/pprof/.
	Pprof  bool
	Logger zerolog.Logger
}

type Server struct {
	studio     *studio.Studio
	hub        *hub
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
	addr       string
	log        zerolog.Logger

	// ctx bounds rounds started from API requests. It outlives the request.
	ctx    context.Context
	rounds sync.WaitGroup
}

// New creates a server for st and subscribes it to bus so events reach
// connected sockets.
func New(st *studio.Studio, bus *eventbus.EventBus, opts Options) *Server {
	s := &Server{
		studio: st,
		hub:    newHub(opts.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkSocketOrigin,
		},
		addr: opts.Addr,
		log:  opts.Logger,
		ctx:  context.Background(),
	}
	s.subscribe(bus)

	s.httpServer = &http.Server{
		Handler:           s.handler(opts.Pprof),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handler(withPprof bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /bridge.js", s.handleBridge)
	mux.HandleFunc("GET /preview/{ws}/{path...}", s.handlePreview)
	mux.HandleFunc("GET /ws/{ws}", s.handleSocket)

	mux.HandleFunc("GET /api/workspaces", s.handleListWorkspaces)
	mux.HandleFunc("POST /api/workspaces", s.handleCreateWorkspace)
	mux.HandleFunc("DELETE /api/workspaces/{ws}", s.handleDeleteWorkspace)
	mux.HandleFunc("GET /api/workspaces/{ws}/tree", s.handleTree)
	mux.HandleFunc("POST /api/workspaces/{ws}/operations", s.handleOperations)
	mux.HandleFunc("GET /api/workspaces/{ws}/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/workspaces/{ws}/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("POST /api/workspaces/{ws}/prompt", s.handlePrompt)
	mux.HandleFunc("POST /api/workspaces/{ws}/tasks/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /api/workspaces/{ws}/tasks/{id}/reject", s.handleReject)
	mux.HandleFunc("PUT /api/workspaces/{ws}/autopilot", s.handleAutopilot)
	mux.HandleFunc("PUT /api/workspaces/{ws}/tab", s.handleTab)
	mux.HandleFunc("PUT /api/workspaces/{ws}/selector", s.handleSelector)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/selection", s.handleClearSelection)
	mux.HandleFunc("GET /api/workspaces/{ws}/logs", s.handleLogs)
	mux.HandleFunc("DELETE /api/workspaces/{ws}/logs", s.handleClearLogs)

	if withPprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return withSecurityHeaders(withOriginGuard(mux))
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves in the background.
// Rounds started through the API run under ctx.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	s.ctx = ctx

	s.log.Info().Str("addr", s.Addr()).Msg("starting preview server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("preview server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Serve starts the server and blocks until ctx is done, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, closes every socket and waits for
// rounds started through the API.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down preview server")
	err := s.httpServer.Shutdown(ctx)
	s.hub.closeAll()
	s.Wait()
	return err
}

// Wait blocks until every round started through the API has settled.
func (s *Server) Wait() {
	s.rounds.Wait()
}

// runRound streams a task in the background.
func (s *Server) runRound(wsID, taskID string) {
	s.rounds.Add(1)
	go func() {
		defer s.rounds.Done()
		if _, err := s.studio.Run(s.ctx, wsID, taskID); err != nil {
			s.log.Warn().Err(err).Str("workspace", wsID).Str("task", taskID).Msg("round failed")
		}
	}()
}
