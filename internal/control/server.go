package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/layout"
	"github.com/hyprpal/clusterdock/internal/util"
)

// Server hosts the clusterdock control socket and serves requests.
type Server struct {
	engine     *engine.Engine
	logger     *util.Logger
	reload     func(reason string) error
	socketPath string

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a control server on the default socket path.
func NewServer(eng *engine.Engine, logger *util.Logger, reload func(reason string) error) (*Server, error) {
	path, err := DefaultSocketPath()
	if err != nil {
		return nil, err
	}
	return NewServerAt(path, eng, logger, reload), nil
}

// NewServerAt creates a control server listening on path.
func NewServerAt(path string, eng *engine.Engine, logger *util.Logger, reload func(reason string) error) *Server {
	return &Server{
		engine:     eng,
		logger:     logger,
		reload:     reload,
		socketPath: path,
	}
}

// SocketPath returns the unix socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Serve listens on the control socket until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.prepareSocket(); err != nil {
		return err
	}
	s.logger.Infof("control server listening on %s", s.socketPath)
	defer s.cleanup()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	}()

	for {
		conn, err := s.accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept error: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return nil, context.Canceled
	}
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return conn, nil
}

func (s *Server) prepareSocket() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("chmod control socket: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

func (s *Server) cleanup() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warnf("remove control socket: %v", err)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	var req Request
	if err := dec.Decode(&req); err != nil {
		s.writeError(conn, fmt.Errorf("decode request: %w", err))
		return
	}
	s.logger.Tracef("control request %s", req.Action)
	switch req.Action {
	case ActionStateGet:
		s.writeOK(conn, s.engine.State())
	case ActionInspect:
		s.writeOK(conn, InspectorSnapshot{
			State:   s.engine.State(),
			History: s.engine.History(),
		})
	case ActionReconcile:
		pos, changed := s.engine.Reconcile()
		s.writeOK(conn, ReconcileResult{Position: pos, Changed: changed})
	case ActionSolve:
		s.handleSolve(conn, req.Params)
	case ActionReload:
		s.handleReload(conn)
	case ActionMetricsGet:
		s.writeOK(conn, s.engine.Telemetry())
	default:
		s.writeError(conn, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) handleSolve(conn net.Conn, params map[string]any) {
	var in SolveParams
	if err := decodeParams(params, &in); err != nil {
		s.writeError(conn, err)
		return
	}
	if _, ok := params["raw"]; !ok {
		s.writeError(conn, errors.New("missing raw position"))
		return
	}
	mode, err := layout.ParseMode(in.Mode)
	if err != nil {
		s.writeError(conn, err)
		return
	}
	st := s.engine.State()
	variant := s.engine.Variant()
	if in.Variant != "" {
		if variant, err = layout.ParseVariant(in.Variant); err != nil {
			s.writeError(conn, err)
			return
		}
	}
	m := st.Metrics
	if in.Metrics != nil {
		m = *in.Metrics
	}
	pos, ok := st.Params.Solve(in.Raw, m, variant, mode)
	result := SolveResult{
		Position: pos,
		OK:       ok,
		Variant:  variant.String(),
		Mode:     mode.String(),
		Metrics:  m.Sanitize(),
	}
	if variant == layout.Bounded {
		zone := st.Params.DeadZone(m)
		result.DeadZone = &zone
	}
	s.writeOK(conn, result)
}

func (s *Server) handleReload(conn net.Conn) {
	if s.reload == nil {
		s.writeError(conn, errors.New("reload not supported"))
		return
	}
	if err := s.reload("control request"); err != nil {
		s.writeError(conn, err)
		return
	}
	s.writeOK(conn, nil)
}

// decodeParams round-trips the generic params map into a typed struct.
func decodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

func (s *Server) writeOK(conn net.Conn, data any) {
	resp := Response{Status: StatusOK}
	if data != nil {
		resp.Data = data
	}
	_ = json.NewEncoder(conn).Encode(resp)
}

func (s *Server) writeError(conn net.Conn, err error) {
	resp := Response{Status: StatusError}
	if err != nil {
		resp.Error = err.Error()
	}
	_ = json.NewEncoder(conn).Encode(resp)
}
