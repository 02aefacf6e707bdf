// Package mcp exposes the daemon's screen operations as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/tiling"
)

const (
	ServerName    = "popdeck"
	ServerVersion = "0.1.0"
)

// Daemon is the IPC surface the tools forward to.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetScreens() (*ipc.ScreensData, error)
	PopOut(req ipc.PopOutPayload) (*ipc.PopOutData, error)
	AssignRoles(roles map[int]string) error
	SetTheme(theme string) (*ipc.ThemeData, error)
}

// Server is the MCP server for popdeck.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates an MCP server that forwards to daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_screens",
		Description: "List the detected screens with their geometry and assigned role (general, detailed or unassigned).",
	}, s.handleListScreens)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pop_out_view",
		Description: "Open a dashboard detail view in a new window on the screen assigned the detailed role. With a single screen, or when no screen is detailed, the view opens as a plain tab. Optional layout options tile several views on the detailed screen.",
	}, s.handlePopOutView)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "assign_screen_roles",
		Description: "Assign general or detailed to every detected screen. All screens must be covered in one call.",
	}, s.handleAssignScreenRoles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_theme",
		Description: "Set the dashboard theme (light, dark or system) and broadcast it to every open view.",
	}, s.handleSetTheme)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report the role assignment state, identity, theme and tracked windows of the running daemon.",
	}, s.handleGetStatus)
}

func (s *Server) handleListScreens(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListScreensInput) (*mcpsdk.CallToolResult, ListScreensOutput, error) {
	data, err := s.daemon.GetScreens()
	if err != nil {
		return nil, ListScreensOutput{}, err
	}
	return nil, ListScreensOutput{Screens: data.Screens, Current: data.Current}, nil
}

func (s *Server) handlePopOutView(_ context.Context, _ *mcpsdk.CallToolRequest, args PopOutViewInput) (*mcpsdk.CallToolResult, PopOutViewOutput, error) {
	if strings.TrimSpace(args.Type) == "" {
		return nil, PopOutViewOutput{}, fmt.Errorf("type is required")
	}
	req := ipc.PopOutPayload{Type: args.Type, ID: args.ID}
	if args.Layout != "" {
		req.Layout = &tiling.Options{
			Mode:       tiling.Mode(args.Layout),
			TotalSlots: args.TotalSlots,
			SlotIndex:  args.SlotIndex,
			PaddingPx:  args.PaddingPx,
		}
		if err := req.Layout.Validate(); err != nil {
			return nil, PopOutViewOutput{}, err
		}
	}

	data, err := s.daemon.PopOut(req)
	if err != nil {
		return nil, PopOutViewOutput{}, err
	}
	return nil, *data, nil
}

func (s *Server) handleAssignScreenRoles(_ context.Context, _ *mcpsdk.CallToolRequest, args AssignScreenRolesInput) (*mcpsdk.CallToolResult, AssignScreenRolesOutput, error) {
	if len(args.Roles) == 0 {
		return nil, AssignScreenRolesOutput{}, fmt.Errorf("roles are required")
	}
	roles := make(map[int]string, len(args.Roles))
	for _, choice := range args.Roles {
		if _, dup := roles[choice.ScreenID]; dup {
			return nil, AssignScreenRolesOutput{}, fmt.Errorf("screen %d listed twice", choice.ScreenID)
		}
		roles[choice.ScreenID] = strings.ToLower(strings.TrimSpace(choice.Role))
	}
	if err := s.daemon.AssignRoles(roles); err != nil {
		return nil, AssignScreenRolesOutput{}, err
	}

	status, err := s.daemon.GetStatus()
	if err != nil {
		return nil, AssignScreenRolesOutput{}, err
	}
	return nil, AssignScreenRolesOutput{State: status.State, Screens: status.Screens}, nil
}

func (s *Server) handleSetTheme(_ context.Context, _ *mcpsdk.CallToolRequest, args SetThemeInput) (*mcpsdk.CallToolResult, SetThemeOutput, error) {
	data, err := s.daemon.SetTheme(args.Theme)
	if err != nil {
		return nil, SetThemeOutput{}, err
	}
	return nil, *data, nil
}

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	data, err := s.daemon.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, err
	}
	return nil, *data, nil
}
