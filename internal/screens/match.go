package screens

// Reference identifies a screen recorded by an earlier detection call.
// Geometry is optional; zero width or height means unknown.
type Reference struct {
	ScreenID int
	Left     int
	Top      int
	Width    int
	Height   int
}

func (r Reference) hasGeometry() bool {
	return r.Width > 0 && r.Height > 0
}

// ResolveAssignedScreen reconciles ref against the current screens. In order:
// exact id, identical geometry, the other screen when exactly two are
// present, the largest non-primary screen. It returns false when nothing
// matches.
func ResolveAssignedScreen(ref Reference, current []Screen) (Screen, bool) {
	for _, s := range current {
		if s.ID == ref.ScreenID {
			return s, true
		}
	}

	if ref.hasGeometry() {
		want := Screen{Left: ref.Left, Top: ref.Top, Width: ref.Width, Height: ref.Height}
		for _, s := range current {
			if s.SameDisplay(want) {
				return s, true
			}
		}
	}

	if len(current) == 2 {
		cur := CurrentIndex(current)
		for i, s := range current {
			if !s.IsPrimary && i != cur {
				return s, true
			}
		}
		return current[1-cur], true
	}

	var (
		best  Screen
		found bool
	)
	for _, s := range current {
		if s.IsPrimary {
			continue
		}
		if !found || s.Area() > best.Area() {
			best, found = s, true
		}
	}
	return best, found
}
