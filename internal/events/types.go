package events

import "time"

// ThemeChanged reports a new theme and which window it came from; an empty
// Origin is the main application.
type ThemeChanged struct {
	Theme  string
	Origin string
}

// AssignmentRequired asks the presentation layer to collect a role for every
// listed screen.
type AssignmentRequired struct {
	ScreenIDs []int
	Message   string
	At        time.Time
}

// StateChanged reports a coordinator transition.
type StateChanged struct {
	From string
	To   string
}
