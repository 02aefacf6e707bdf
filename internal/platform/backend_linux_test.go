//go:build linux

package platform

import (
	"reflect"
	"testing"
)

func TestBrowserArgs_Positioned(t *testing.T) {
	req := OpenRequest{
		URL:    "http://localhost:3000/detailed/alerts?window=alerts-dashboard",
		Bounds: &Rect{X: 2112, Y: 108, Width: 1536, Height: 864},
	}
	got := browserArgs([]string{"--user-data-dir=/tmp/p"}, req)
	want := []string{
		"--user-data-dir=/tmp/p",
		"--new-window",
		"--app=http://localhost:3000/detailed/alerts?window=alerts-dashboard",
		"--window-position=2112,108",
		"--window-size=1536,864",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("browserArgs() = %v, want %v", got, want)
	}
}

func TestBrowserArgs_UnpositionedDoesNotAliasBase(t *testing.T) {
	base := make([]string, 1, 8)
	base[0] = "--incognito"
	got := browserArgs(base, OpenRequest{URL: "http://x"})
	if len(got) != 3 || got[2] != "--app=http://x" {
		t.Fatalf("browserArgs() = %v", got)
	}
	if len(base) != 1 {
		t.Fatalf("base args mutated: %v", base)
	}
}
