// Package channel posts view data and theme updates to popped-out windows
// and keeps the theme consistent across every window.
package channel

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType names the kind of a Message.
type MessageType string

const (
	TypeDetailedViewData   MessageType = "DETAILED_VIEW_DATA"
	TypeThemeChange        MessageType = "THEME_CHANGE"
	TypeShowRoleAssignment MessageType = "showRoleAssignment"
)

// Message is the envelope every window receives. Timestamp is in Unix
// milliseconds. Receivers keep the last message per type.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage encodes payload into an envelope stamped with now.
func NewMessage(t MessageType, payload any, now time.Time) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: data, Timestamp: now.UnixMilli()}, nil
}

// Decode unmarshals the payload into out.
func (m Message) Decode(out any) error {
	return json.Unmarshal(m.Payload, out)
}

// ScreenInfo tells a detail view where it was opened from.
type ScreenInfo struct {
	CurrentScreen int `json:"currentScreen"`
	TotalScreens  int `json:"totalScreens"`
	TargetScreen  int `json:"targetScreen"`
}

// ViewData is the DETAILED_VIEW_DATA payload.
type ViewData struct {
	ViewType   string     `json:"viewType"`
	ID         string     `json:"id,omitempty"`
	ScreenInfo ScreenInfo `json:"screenInfo"`
}

// ThemePayload is the THEME_CHANGE payload.
type ThemePayload struct {
	Theme Theme `json:"theme"`
}

// RoleAssignmentPayload is the showRoleAssignment payload.
type RoleAssignmentPayload struct {
	ScreenIDs []int  `json:"screens"`
	Message   string `json:"message"`
}
