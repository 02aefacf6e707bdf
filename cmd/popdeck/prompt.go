package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/app"
	"github.com/1broseidon/popdeck/internal/events"
	"github.com/1broseidon/popdeck/internal/ipc"
)

// startRolePrompt asks on the terminal for screen roles whenever the
// coordinator reports that they are missing.
func startRolePrompt(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	requests, err := events.Subscribe[events.AssignmentRequired](ctx, a.Bus, events.TopicAssignmentRequired)
	if err != nil {
		return err
	}
	go promptLoop(ctx, a, requests, bufio.NewReader(in), out)
	return nil
}

func promptLoop(ctx context.Context, a *app.App, requests <-chan events.AssignmentRequired, reader *bufio.Reader, out io.Writer) {
	for req := range requests {
		fmt.Fprintf(out, "\n%s\n", req.Message)
		for {
			roles, err := askRoles(reader, out, a.Screens(ctx).Screens)
			if err != nil {
				logger.Warnf(ctx, "role prompt: %v", err)
				return
			}
			if err := a.AssignRoles(ctx, roles); err != nil {
				fmt.Fprintf(out, "assignment failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "roles saved")
			break
		}
	}
}

// askRoles reads one role per screen: g for general, d for detailed.
func askRoles(r *bufio.Reader, out io.Writer, list []ipc.ScreenInfo) (map[int]string, error) {
	roles := make(map[int]string, len(list))
	for _, s := range list {
		for {
			fmt.Fprintf(out, "screen %d (%dx%d+%d+%d) [g]eneral or [d]etailed? ", s.ID, s.Width, s.Height, s.Left, s.Top)
			line, err := r.ReadString('\n')
			if err != nil && line == "" {
				return nil, err
			}
			role, ok := parseRoleAnswer(line)
			if ok {
				roles[s.ID] = role
				break
			}
			fmt.Fprintln(out, "please answer g or d")
			if err != nil {
				return nil, err
			}
		}
	}
	return roles, nil
}

func parseRoleAnswer(line string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "g", "general":
		return "general", true
	case "d", "detailed":
		return "detailed", true
	}
	return "", false
}
