package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/popdeck/internal/config"
	"github.com/1broseidon/popdeck/internal/ipc"
	"github.com/1broseidon/popdeck/internal/tiling"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "screens":
		os.Exit(runScreens(os.Args[2:]))
	case "popout":
		os.Exit(runPopOut(os.Args[2:]))
	case "roles":
		os.Exit(runRoles(os.Args[2:]))
	case "theme":
		os.Exit(runTheme(os.Args[2:]))
	case "layout":
		os.Exit(runLayout(os.Args[2:]))
	case "refresh":
		os.Exit(runRefresh(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "store":
		os.Exit(runStore(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: popdeck <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the popdeck daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  screens             List detected screens and their roles")
	fmt.Fprintln(w, "  refresh             Re-detect screens and re-check roles")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  popout <type> [id]  Pop out a dashboard view")
	fmt.Fprintln(w, "  roles assign        Assign a role to every screen")
	fmt.Fprintln(w, "  theme set           Change the theme of every window")
	fmt.Fprintln(w, "  layout set          Store the default pop-out layout")
	fmt.Fprintln(w, "  layout clear        Forget the stored layout")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print effective configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  store serve         Run a role store server")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'popdeck <command> --help' for command-specific options.")
}

// parseFlags parses args and returns the exit code to use when parsing
// stopped the command.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: popdeck status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(status)
	}
	layout := status.Layout
	if layout == "" {
		layout = "full screen"
	}
	fmt.Printf("daemon_running:  %v\n", status.DaemonRunning)
	fmt.Printf("state:           %s\n", status.State)
	fmt.Printf("device_id:       %s\n", status.DeviceID)
	fmt.Printf("session_id:      %s\n", status.SessionID)
	if status.Ephemeral {
		fmt.Println("storage:         unavailable (ids are not persisted)")
	}
	fmt.Printf("capability:      %s\n", status.Capability)
	fmt.Printf("theme:           %s\n", status.Theme)
	fmt.Printf("layout:          %s\n", layout)
	fmt.Printf("screens:         %d\n", len(status.Screens))
	fmt.Printf("tracked_windows: %s\n", strings.Join(status.TrackedWindows, ", "))
	fmt.Printf("uptime_seconds:  %d\n", status.UptimeSeconds)
	return 0
}

func runScreens(args []string) int {
	fs := flag.NewFlagSet("screens", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: popdeck screens [--json]")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	data, err := ipc.NewClient().GetScreens()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		return printJSON(data)
	}
	for _, s := range data.Screens {
		marker := " "
		if s.ID == data.Current {
			marker = "*"
		}
		primary := ""
		if s.Primary {
			primary = " primary"
		}
		fmt.Printf("%s %d  %-12s %dx%d+%d+%d  %-10s%s\n", marker, s.ID, s.Name, s.Width, s.Height, s.Left, s.Top, s.Role, primary)
	}
	return 0
}

func runPopOut(args []string) int {
	fs := flag.NewFlagSet("popout", flag.ContinueOnError)
	mode := fs.String("layout", "", "Layout mode: grid, rows or columns")
	slots := fs.Int("slots", 0, "Total slots for the layout")
	slot := fs.Int("slot", -1, "Slot index (default: next slot)")
	padding := fs.Int("padding", 0, "Padding between slots in pixels")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: popdeck popout [--layout MODE --slots N [--slot I] [--padding PX]] <type> [id]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Types: flight, weather, alerts, metrics.")
		fmt.Fprintln(os.Stderr, "Flight and weather views need an id.")
	}
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}

	req := ipc.PopOutPayload{Type: fs.Arg(0)}
	if fs.NArg() == 2 {
		req.ID = fs.Arg(1)
	}
	if *mode != "" {
		req.Layout = &tiling.Options{
			Mode:       tiling.Mode(*mode),
			TotalSlots: *slots,
			PaddingPx:  *padding,
		}
		if *slot >= 0 {
			req.Layout.SlotIndex = slot
		}
		if err := req.Layout.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	res, err := ipc.NewClient().PopOut(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if res.Tab {
		fmt.Printf("opened %s in a tab (%s)\n", res.URL, res.State)
		return 0
	}
	fmt.Printf("opened %s as %s", res.URL, res.WindowName)
	if res.Bounds != nil {
		fmt.Printf(" at %dx%d+%d+%d", res.Bounds.Width, res.Bounds.Height, res.Bounds.X, res.Bounds.Y)
	}
	fmt.Printf(" (strategy %d)\n", res.Strategy)
	return 0
}

func printRolesUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: popdeck roles assign <screen>=<role>...")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Roles: general, detailed. Every detected screen needs a role.")
	fmt.Fprintln(w, "Example: popdeck roles assign 0=general 1=detailed")
}

func runRoles(args []string) int {
	if len(args) == 0 {
		printRolesUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "assign":
	case "help", "-h", "--help":
		printRolesUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown roles command: %s\n\n", args[0])
		printRolesUsage(os.Stderr)
		return 2
	}

	roles, err := parseRoleArgs(args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printRolesUsage(os.Stderr)
		return 2
	}
	client := ipc.NewClient()
	if err := client.AssignRoles(roles); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	data, err := client.GetScreens()
	if err != nil {
		return 0
	}
	for _, s := range data.Screens {
		fmt.Printf("screen %d: %s\n", s.ID, s.Role)
	}
	return 0
}

func parseRoleArgs(args []string) (map[int]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no roles given")
	}
	roles := make(map[int]string, len(args))
	for _, arg := range args {
		idText, role, found := strings.Cut(arg, "=")
		if !found {
			return nil, fmt.Errorf("invalid assignment %q, want <screen>=<role>", arg)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid screen id %q", idText)
		}
		if _, dup := roles[id]; dup {
			return nil, fmt.Errorf("screen %d assigned twice", id)
		}
		roles[id] = strings.ToLower(strings.TrimSpace(role))
	}
	return roles, nil
}

func runTheme(args []string) int {
	if len(args) != 2 || args[0] != "set" {
		fmt.Fprintln(os.Stderr, "Usage: popdeck theme set <light|dark|system>")
		return 2
	}
	res, err := ipc.NewClient().SetTheme(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !res.Changed {
		fmt.Printf("theme already %s\n", res.Theme)
		return 0
	}
	fmt.Printf("theme set to %s\n", res.Theme)
	return 0
}

func printLayoutUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  popdeck layout set [--padding PX] <mode> <slots>")
	fmt.Fprintln(w, "  popdeck layout clear")
}

func runLayout(args []string) int {
	if len(args) == 0 {
		printLayoutUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "set":
		fs := flag.NewFlagSet("layout set", flag.ContinueOnError)
		padding := fs.Int("padding", 0, "Padding between slots in pixels")
		fs.Usage = func() { printLayoutUsage(os.Stderr) }
		if code, ok := parseFlags(fs, args[1:]); !ok {
			return code
		}
		if fs.NArg() != 2 {
			printLayoutUsage(os.Stderr)
			return 2
		}
		slots, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid slot count %q\n", fs.Arg(1))
			return 2
		}
		opts := tiling.Options{Mode: tiling.Mode(fs.Arg(0)), TotalSlots: slots, PaddingPx: *padding}
		if err := opts.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		if err := ipc.NewClient().SetLayout(ipc.SetLayoutPayload{Layout: &opts}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "clear":
		if err := ipc.NewClient().SetLayout(ipc.SetLayoutPayload{Clear: true}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "help", "-h", "--help":
		printLayoutUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown layout command: %s\n\n", args[0])
		printLayoutUsage(os.Stderr)
		return 2
	}
}

func runRefresh(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "Usage: popdeck refresh")
		return 2
	}
	res, err := ipc.NewClient().Refresh()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(res.State)
	return 0
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  popdeck config validate [--path FILE]")
	fmt.Fprintln(w, "  popdeck config print [--path FILE] [--sources]")
}

func runConfig(args []string) int {
	if len(args) == 0 {
		printConfigUsage(os.Stderr)
		return 2
	}
	sub := args[0]
	if sub == "help" || sub == "-h" || sub == "--help" {
		printConfigUsage(os.Stdout)
		return 0
	}
	if sub != "validate" && sub != "print" {
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n\n", sub)
		printConfigUsage(os.Stderr)
		return 2
	}

	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	path := fs.String("path", "", "Config file (default: ~/.config/popdeck/config.yaml)")
	showSources := fs.Bool("sources", false, "Print where each value was set")
	fs.Usage = func() { printConfigUsage(os.Stderr) }
	if code, ok := parseFlags(fs, args[1:]); !ok {
		return code
	}

	if *path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		*path = p
	}
	res, err := config.LoadFromPath(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if sub == "validate" {
		fmt.Printf("config OK (%d file(s))\n", len(res.Files))
		return 0
	}

	printed := *res.Config
	if printed.RoleStore.Token != "" {
		printed.RoleStore.Token = "<redacted>"
	}
	if len(printed.StoreServer.Tokens) > 0 {
		printed.StoreServer.Tokens = []string{"<redacted>"}
	}
	out, err := yaml.Marshal(&printed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	os.Stdout.Write(out)
	if *showSources {
		keys := make([]string, 0, len(res.Sources))
		for k := range res.Sources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("")
		fmt.Println("# sources")
		for _, k := range keys {
			src := res.Sources[k]
			fmt.Printf("# %s: %s:%d\n", k, src.File, src.Line)
		}
	}
	return 0
}
