package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/ipc"
)

func TestAskRoles_RepromptsOnBadAnswer(t *testing.T) {
	list := []ipc.ScreenInfo{
		{ID: 0, Width: 1920, Height: 1080},
		{ID: 1, Left: 1920, Width: 2560, Height: 1440},
	}
	in := bufio.NewReader(strings.NewReader("g\nx\nDetailed\n"))
	var out bytes.Buffer

	roles, err := askRoles(in, &out, list)
	require.NoError(t, err)
	require.Equal(t, map[int]string{0: "general", 1: "detailed"}, roles)
	require.Contains(t, out.String(), "please answer g or d")
	require.Contains(t, out.String(), "screen 1 (2560x1440+1920+0)")
}

func TestAskRoles_EOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("g\n"))
	_, err := askRoles(in, &bytes.Buffer{}, []ipc.ScreenInfo{{ID: 0}, {ID: 1}})
	require.Error(t, err)
}

func TestParseRoleArgs(t *testing.T) {
	roles, err := parseRoleArgs([]string{"0=general", "1= Detailed"})
	require.NoError(t, err)
	require.Equal(t, map[int]string{0: "general", 1: "detailed"}, roles)

	for _, bad := range [][]string{
		nil,
		{"0"},
		{"a=general"},
		{"-1=general"},
		{"0=general", "0=detailed"},
	} {
		_, err := parseRoleArgs(bad)
		require.Error(t, err, "%v", bad)
	}
}
