package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/tiling"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetScreens  CommandType = "GET_SCREENS"
	CommandPopOut      CommandType = "POPOUT"
	CommandAssignRoles CommandType = "ASSIGN_ROLES"
	CommandSetTheme    CommandType = "SET_THEME"
	CommandSetLayout   CommandType = "SET_LAYOUT"
	CommandRefresh     CommandType = "REFRESH"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ScreenInfo describes one detected screen and its role.
type ScreenInfo struct {
	ID      int     `json:"id"`
	Name    string  `json:"name,omitempty"`
	Left    int     `json:"left"`
	Top     int     `json:"top"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Primary bool    `json:"primary"`
	Scale   float64 `json:"scale"`
	Role    string  `json:"role"`
}

// ScreensData represents the data returned by GET_SCREENS
type ScreensData struct {
	Screens []ScreenInfo `json:"screens"`
	Current int          `json:"current"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	State          string       `json:"state"`
	DeviceID       string       `json:"device_id"`
	SessionID      string       `json:"session_id"`
	Ephemeral      bool         `json:"ephemeral_identity,omitempty"`
	Capability     string       `json:"capability"`
	Theme          string       `json:"theme"`
	Layout         string       `json:"layout,omitempty"`
	TrackedWindows []string     `json:"tracked_windows,omitempty"`
	Screens        []ScreenInfo `json:"screens"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	DaemonRunning  bool         `json:"daemon_running"`
}

// PopOutPayload represents the payload for the POPOUT command
type PopOutPayload struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Layout *tiling.Options `json:"layout,omitempty"`
}

// PopOutData reports how a pop-out ended.
type PopOutData struct {
	URL        string         `json:"url"`
	WindowName string         `json:"window_name"`
	State      string         `json:"state"`
	Strategy   int            `json:"strategy,omitempty"`
	Tab        bool           `json:"tab"`
	Bounds     *platform.Rect `json:"bounds,omitempty"`
}

// AssignRolesPayload maps screen id to role.
type AssignRolesPayload struct {
	Roles map[int]string `json:"roles"`
}

type SetThemePayload struct {
	Theme string `json:"theme"`
}

type ThemeData struct {
	Theme   string `json:"theme"`
	Changed bool   `json:"changed"`
}

// SetLayoutPayload stores Layout as the default pop-out layout, or removes
// the stored default when Clear is set.
type SetLayoutPayload struct {
	Layout *tiling.Options `json:"layout,omitempty"`
	Clear  bool            `json:"clear,omitempty"`
}

type RefreshData struct {
	State string `json:"state"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
