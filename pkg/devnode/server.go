package devnode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/haivivi/scullring/pkg/ring"
	"github.com/haivivi/scullring/pkg/scull"
)

// Server serves the channels of one table. It implements http.Handler.
type Server struct {
	table    *scull.Table
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	active atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger. Defaults to slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer returns a server for table.
func NewServer(table *scull.Table, opts ...ServerOption) *Server {
	s := &Server{
		table:  table,
		logger: slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mux.HandleFunc("GET /channels", s.handleList)
	s.mux.HandleFunc("GET /channels/{name}", s.handleOpen)
	return s
}

// Sessions returns the number of open websocket sessions.
func (s *Server) Sessions() int {
	return int(s.active.Load())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close interrupts every open session and waits for them to end.
// http.Server.Shutdown does not track upgraded connections, so call both.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// track registers a session; it reports false once the server is closed.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	snap := s.table.Snapshot()
	if snap == nil {
		snap = []scull.ChannelStatus{}
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Warn("failed to write snapshot", "error", err)
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	mode, err := ring.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h, err := s.table.OpenName(r.PathValue("name"), mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer h.Close()

	if !s.track() {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "channel", h.Name(), "error", err)
		return
	}
	defer ws.Close()

	logger := s.logger.With("channel", h.Name(), "handle", h.ID(), "remote", r.RemoteAddr)
	s.active.Add(1)
	defer s.active.Add(-1)
	logger.Info("session opened", "mode", mode)
	s.session(ws, h, logger)
	logger.Info("session closed")
}

type frame struct {
	req Request
	err error
}

// maxPending bounds the frames a client may queue behind a request that is
// still being served.
const maxPending = 64

// session answers requests in order until the client goes away or the
// server closes. The read loop never waits for the request in progress, so
// a disconnect is seen at once and interrupts a transfer blocked in the
// channel even when the client has pipelined further frames.
func (s *Server) session(ws *websocket.Conn, h *scull.Handle, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stop := context.AfterFunc(s.ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		ws.Close()
	})
	defer stop()

	var (
		mu    sync.Mutex
		queue []frame
		eof   bool
	)
	ready := make(chan struct{}, 1)
	notify := func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	go func() {
		defer func() {
			mu.Lock()
			eof = true
			mu.Unlock()
			cancel()
			notify()
		}()
		for {
			typ, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
					logger.Debug("read loop ended", "error", err)
				}
				return
			}
			var f frame
			if typ != websocket.BinaryMessage {
				f.err = fmt.Errorf("%w: frame type %d", ErrBadRequest, typ)
			} else if err := unmarshal(data, &f.req); err != nil {
				f.err = fmt.Errorf("%w: %w", ErrBadRequest, err)
			}
			mu.Lock()
			if len(queue) >= maxPending {
				mu.Unlock()
				logger.Warn("too many pending frames", "limit", maxPending)
				return
			}
			queue = append(queue, f)
			mu.Unlock()
			notify()
		}
	}()

	for {
		mu.Lock()
		if len(queue) == 0 {
			done := eof
			mu.Unlock()
			if done {
				return
			}
			<-ready
			continue
		}
		f := queue[0]
		queue = queue[1:]
		mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		var resp Response
		if f.err != nil {
			resp = errorResponse(0, f.err)
		} else {
			resp = s.serve(ctx, h, f.req)
		}
		data, err := marshal(resp)
		if err != nil {
			logger.Error("failed to encode response", "error", err)
			return
		}
		if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
			if ctx.Err() == nil {
				logger.Warn("failed to write response", "error", err)
			}
			return
		}
	}
}

func (s *Server) serve(ctx context.Context, h *scull.Handle, req Request) Response {
	switch req.Op {
	case OpWrite:
		n, err := h.Write(ctx, req.Data)
		if err != nil {
			return errorResponse(n, err)
		}
		return Response{N: n}
	case OpRead:
		if req.Max < 0 {
			return errorResponse(0, fmt.Errorf("%w: negative max %d", ErrBadRequest, req.Max))
		}
		buf := make([]byte, min(req.Max, h.Capacity()))
		n, err := h.Read(ctx, buf)
		if err != nil {
			return errorResponse(n, err)
		}
		return Response{N: n, Data: buf[:n]}
	case OpStatus, OpQuery:
		cmd := scull.CmdInfo
		if req.Op == OpQuery {
			cmd = scull.Command(req.Cmd)
		}
		st, err := h.Query(ctx, cmd)
		if err != nil {
			return errorResponse(0, err)
		}
		return Response{Status: &st}
	default:
		return errorResponse(0, fmt.Errorf("%w: unknown op %q", ErrBadRequest, req.Op))
	}
}

// ListenAndServe serves table on addr until ctx is done, then shuts the
// HTTP server down and closes every session.
func ListenAndServe(ctx context.Context, addr string, table *scull.Table, opts ...ServerOption) error {
	s := NewServer(table, opts...)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("device node listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := multierr.Combine(srv.Shutdown(shutdownCtx), s.Close())
	if lerr := <-errc; !errors.Is(lerr, http.ErrServerClosed) {
		err = multierr.Append(err, lerr)
	}
	return err
}
