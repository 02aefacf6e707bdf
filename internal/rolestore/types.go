// Package rolestore talks to the Session/Role Store that records which role
// each screen of a device session plays, and contains an in-memory reference
// implementation of that store.
package rolestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Role is the purpose assigned to a screen.
type Role string

const (
	RoleGeneral    Role = "general"
	RoleDetailed   Role = "detailed"
	RoleUnassigned Role = "unassigned"
)

// ErrInvalidRole is returned for a role outside general, detailed and unassigned.
var ErrInvalidRole = errors.New("invalid role: must be general, detailed, or unassigned")

// ParseRole validates s.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleGeneral, RoleDetailed, RoleUnassigned:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Assigned reports whether r is general or detailed.
func (r Role) Assigned() bool {
	return r == RoleGeneral || r == RoleDetailed
}

// ScreenID is a screen ordinal. The store keeps it as a string; both JSON
// numbers and strings are accepted on input and it is written as a string.
type ScreenID int

func (id ScreenID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(id)))
}

func (id *ScreenID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid screenId %q: %w", s, err)
		}
		*id = ScreenID(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid screenId %s: %w", data, err)
	}
	*id = ScreenID(n)
	return nil
}

// ScreenRoleAssignment is one stored screen record.
type ScreenRoleAssignment struct {
	SessionID string    `json:"sessionId"`
	DeviceID  string    `json:"deviceId"`
	ScreenID  ScreenID  `json:"screenId"`
	Left      int       `json:"left"`
	Top       int       `json:"top"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LinkRequest registers a screen's geometry. An empty Role keeps the stored
// role, or defaults to unassigned for a new record.
type LinkRequest struct {
	SessionID string   `json:"sessionId"`
	DeviceID  string   `json:"deviceId"`
	ScreenID  ScreenID `json:"screenId"`
	Left      int      `json:"left"`
	Top       int      `json:"top"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Role      Role     `json:"role,omitempty"`
}

// RoleRequest sets the role of one screen.
type RoleRequest struct {
	SessionID string   `json:"sessionId"`
	DeviceID  string   `json:"deviceId"`
	ScreenID  ScreenID `json:"screenId"`
	Role      Role     `json:"role"`
}

type successResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Screen  *ScreenRoleAssignment `json:"screen,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
