package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/popdeck/internal/runtimepath"
)

// PopOutTimeout bounds a POPOUT round trip, which waits for the browser
// window to appear and for the placement strategies to run.
const PopOutTimeout = 30 * time.Second

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the daemon listening on socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

func (c *Client) sendRequest(req *Request) (*Response, error) {
	return c.sendRequestTimeout(req, c.timeout)
}

// sendRequestTimeout sends a request and waits up to timeout for a response
func (c *Client) sendRequestTimeout(req *Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(command CommandType, payload interface{}, timeout time.Duration, out interface{}) error {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequestTimeout(req, timeout)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, c.timeout, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetScreens retrieves the detected screens and their roles
func (c *Client) GetScreens() (*ScreensData, error) {
	var data ScreensData
	if err := c.call(CommandGetScreens, nil, c.timeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// PopOut asks the daemon to open a detail view
func (c *Client) PopOut(req PopOutPayload) (*PopOutData, error) {
	var data PopOutData
	if err := c.call(CommandPopOut, req, PopOutTimeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AssignRoles sends one role per screen id
func (c *Client) AssignRoles(roles map[int]string) error {
	return c.call(CommandAssignRoles, AssignRolesPayload{Roles: roles}, PopOutTimeout, nil)
}

// SetTheme changes the theme of every window
func (c *Client) SetTheme(theme string) (*ThemeData, error) {
	var data ThemeData
	if err := c.call(CommandSetTheme, SetThemePayload{Theme: theme}, c.timeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetLayout stores or clears the default pop-out layout
func (c *Client) SetLayout(req SetLayoutPayload) error {
	return c.call(CommandSetLayout, req, c.timeout, nil)
}

// Refresh re-runs screen detection and role checks
func (c *Client) Refresh() (*RefreshData, error) {
	var data RefreshData
	if err := c.call(CommandRefresh, nil, PopOutTimeout, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
