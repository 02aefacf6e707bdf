package mcp

import "github.com/1broseidon/popdeck/internal/ipc"

// ListScreensInput is the input for the list_screens tool.
type ListScreensInput struct{}

// ListScreensOutput is the output for the list_screens tool.
type ListScreensOutput struct {
	Screens []ipc.ScreenInfo `json:"screens"`
	Current int              `json:"current" jsonschema:"Index of the screen hosting the main dashboard"`
}

// PopOutViewInput is the input for the pop_out_view tool.
type PopOutViewInput struct {
	Type       string `json:"type" jsonschema:"View type: flight, alerts, metrics or operations"`
	ID         string `json:"id,omitempty" jsonschema:"Entity id; required for flight views"`
	Layout     string `json:"layout,omitempty" jsonschema:"Optional layout: grid, rows or columns. Omit for the stored default."`
	TotalSlots int    `json:"total_slots,omitempty" jsonschema:"Number of cells the layout partitions the screen into"`
	SlotIndex  *int   `json:"slot_index,omitempty" jsonschema:"Cell to use; omitted slots cycle round-robin"`
	PaddingPx  int    `json:"padding_px,omitempty" jsonschema:"Inset applied to every side of the cell"`
}

// PopOutViewOutput is the output for the pop_out_view tool.
type PopOutViewOutput = ipc.PopOutData

// RoleChoice assigns one role to one screen.
type RoleChoice struct {
	ScreenID int    `json:"screen_id" jsonschema:"Screen id as reported by list_screens"`
	Role     string `json:"role" jsonschema:"general or detailed"`
}

// AssignScreenRolesInput is the input for the assign_screen_roles tool.
type AssignScreenRolesInput struct {
	Roles []RoleChoice `json:"roles" jsonschema:"One role per detected screen"`
}

// AssignScreenRolesOutput is the output for the assign_screen_roles tool.
type AssignScreenRolesOutput struct {
	State   string           `json:"state"`
	Screens []ipc.ScreenInfo `json:"screens"`
}

// SetThemeInput is the input for the set_theme tool.
type SetThemeInput struct {
	Theme string `json:"theme" jsonschema:"light, dark or system"`
}

// SetThemeOutput is the output for the set_theme tool.
type SetThemeOutput = ipc.ThemeData

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput = ipc.StatusData
