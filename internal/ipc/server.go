package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/runtimepath"
)

// Service is what the daemon exposes over IPC.
type Service interface {
	Status(ctx context.Context) StatusData
	Screens(ctx context.Context) ScreensData
	PopOut(ctx context.Context, req PopOutPayload) (PopOutData, error)
	AssignRoles(ctx context.Context, roles map[int]string) error
	SetTheme(ctx context.Context, theme string) (ThemeData, error)
	SetLayout(ctx context.Context, req SetLayoutPayload) error
	Refresh(ctx context.Context) (RefreshData, error)
}

// Server handles IPC requests from clients
type Server struct {
	ctx          context.Context
	socketPath   string
	listener     net.Listener
	svc          Service
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server on the default socket path.
func NewServer(ctx context.Context, svc Service) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(ctx, socketPath, svc), nil
}

// NewServerAt creates a new IPC server listening on socketPath.
func NewServerAt(ctx context.Context, socketPath string, svc Service) *Server {
	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		ctx:        ctx,
		socketPath: socketPath,
		svc:        svc,
		startTime:  time.Now(),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	logger.Infof(s.ctx, "IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			logger.Errorf(s.ctx, "IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection serves one newline-terminated JSON request.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		logger.Errorf(s.ctx, "IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(s.ctx, req)

	respData, err := resp.Marshal()
	if err != nil {
		logger.Errorf(s.ctx, "Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		logger.Errorf(s.ctx, "Failed to send response: %v", err)
	}
}

func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	logger.Debugf(ctx, "IPC: received %s", req.Command)
	switch req.Command {
	case CommandGetStatus:
		status := s.svc.Status(ctx)
		status.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
		status.DaemonRunning = true
		return ok(status)
	case CommandGetScreens:
		return ok(s.svc.Screens(ctx))
	case CommandPopOut:
		return s.handlePopOut(ctx, req.Payload)
	case CommandAssignRoles:
		return s.handleAssignRoles(ctx, req.Payload)
	case CommandSetTheme:
		return s.handleSetTheme(ctx, req.Payload)
	case CommandSetLayout:
		return s.handleSetLayout(ctx, req.Payload)
	case CommandRefresh:
		data, err := s.svc.Refresh(ctx)
		if err != nil {
			// The coordinator still advanced; report the state with the error.
			logger.Warnf(ctx, "IPC: refresh reported errors: %v", err)
		}
		return ok(data)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handlePopOut(ctx context.Context, payload json.RawMessage) *Response {
	var req PopOutPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid popout payload: %v", err))
	}
	data, err := s.svc.PopOut(ctx, req)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to pop out view: %v", err))
	}
	return ok(data)
}

func (s *Server) handleAssignRoles(ctx context.Context, payload json.RawMessage) *Response {
	var req AssignRolesPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid assign payload: %v", err))
	}
	if len(req.Roles) == 0 {
		return NewErrorResponse("roles are required")
	}
	if err := s.svc.AssignRoles(ctx, req.Roles); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to assign roles: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleSetTheme(ctx context.Context, payload json.RawMessage) *Response {
	var req SetThemePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid theme payload: %v", err))
	}
	data, err := s.svc.SetTheme(ctx, req.Theme)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set theme: %v", err))
	}
	return ok(data)
}

func (s *Server) handleSetLayout(ctx context.Context, payload json.RawMessage) *Response {
	var req SetLayoutPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid layout payload: %v", err))
	}
	if !req.Clear && req.Layout == nil {
		return NewErrorResponse("layout is required")
	}
	if err := s.svc.SetLayout(ctx, req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set layout: %v", err))
	}
	return ok(nil)
}

func ok(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
