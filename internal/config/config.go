package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/tiling"
)

// TokenEnv overrides role_store.token when set.
const TokenEnv = "POPDECK_TOKEN"

// RoleStoreConfig points at the session/role store service.
type RoleStoreConfig struct {
	// URL is the API root, including the /api prefix.
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token,omitempty"`
	TokenFile string        `yaml:"token_file,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// BrowserConfig selects the programs used to open views.
type BrowserConfig struct {
	Command       string        `yaml:"command"`
	Args          []string      `yaml:"args,omitempty"`
	Opener        string        `yaml:"opener"`
	WindowTimeout time.Duration `yaml:"window_timeout"`
}

// PlacementConfig tunes the window placement retries.
type PlacementConfig struct {
	VerifyDelay time.Duration   `yaml:"verify_delay"`
	MoveDelays  []time.Duration `yaml:"move_delays"`
}

// ChannelConfig tunes message delivery to opened windows.
type ChannelConfig struct {
	ResendDelays []time.Duration `yaml:"resend_delays"`
	PollInterval time.Duration   `yaml:"poll_interval"`
}

// LayoutConfig is the default pop-out layout. An empty mode means full screen.
type LayoutConfig struct {
	Mode       string `yaml:"mode,omitempty"`
	TotalSlots int    `yaml:"total_slots,omitempty"`
	PaddingPx  int    `yaml:"padding_px,omitempty"`
}

// ScreenSize is the geometry assumed when no display can be detected.
type ScreenSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RelayConfig configures the HTTP mailbox that browser windows poll.
type RelayConfig struct {
	Listen string `yaml:"listen"`
}

// StoreServerConfig configures `popdeck store serve`.
type StoreServerConfig struct {
	Listen string   `yaml:"listen"`
	Tokens []string `yaml:"tokens,omitempty"`
}

// HotkeyConfig binds a global key sequence to a pop-out.
type HotkeyConfig struct {
	Keys string `yaml:"keys"`
	View string `yaml:"view"`
	ID   string `yaml:"id,omitempty"`
}

// DaemonConfig configures the long-running daemon.
type DaemonConfig struct {
	// DisplayWatchInterval is how often displays are re-detected. Zero
	// disables the watcher.
	DisplayWatchInterval time.Duration `yaml:"display_watch_interval"`
}

type Config struct {
	Include        IncludeList       `yaml:"include,omitempty"`
	DashboardURL   string            `yaml:"dashboard_url"`
	LogLevel       string            `yaml:"log_level"`
	Theme          string            `yaml:"theme"`
	StateFile      string            `yaml:"state_file,omitempty"`
	Display        string            `yaml:"display,omitempty"`
	XAuthority     string            `yaml:"xauthority,omitempty"`
	RoleStore      RoleStoreConfig   `yaml:"role_store"`
	Browser        BrowserConfig     `yaml:"browser"`
	Placement      PlacementConfig   `yaml:"placement"`
	Channel        ChannelConfig     `yaml:"channel"`
	Layout         LayoutConfig      `yaml:"layout,omitempty"`
	FallbackScreen ScreenSize        `yaml:"fallback_screen"`
	Relay          RelayConfig       `yaml:"relay"`
	StoreServer    StoreServerConfig `yaml:"store_server"`
	Daemon         DaemonConfig      `yaml:"daemon"`
	Hotkeys        []HotkeyConfig    `yaml:"hotkeys,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		DashboardURL: "http://localhost:3000",
		LogLevel:     "info",
		Theme:        "system",
		RoleStore: RoleStoreConfig{
			URL:     "http://localhost:3001/api",
			Timeout: 10 * time.Second,
		},
		Browser: BrowserConfig{
			Command:       "chromium",
			Opener:        "xdg-open",
			WindowTimeout: 5 * time.Second,
		},
		Placement: PlacementConfig{
			VerifyDelay: 500 * time.Millisecond,
			MoveDelays: []time.Duration{
				100 * time.Millisecond,
				300 * time.Millisecond,
				600 * time.Millisecond,
				1200 * time.Millisecond,
			},
		},
		Channel: ChannelConfig{
			ResendDelays: []time.Duration{0, 500 * time.Millisecond, 1500 * time.Millisecond},
			PollInterval: time.Second,
		},
		FallbackScreen: ScreenSize{Width: 1920, Height: 1080},
		Relay:          RelayConfig{Listen: "127.0.0.1:3002"},
		StoreServer:    StoreServerConfig{Listen: "127.0.0.1:3001"},
		Daemon:         DaemonConfig{DisplayWatchInterval: 5 * time.Second},
	}
}

// LayoutOptions returns the configured default layout, or nil for full screen.
func (c *Config) LayoutOptions() *tiling.Options {
	if c == nil || c.Layout.Mode == "" {
		return nil
	}
	return &tiling.Options{
		Mode:       tiling.Mode(c.Layout.Mode),
		TotalSlots: c.Layout.TotalSlots,
		PaddingPx:  c.Layout.PaddingPx,
	}
}

// ResolveToken returns the bearer credential for the role store: the
// POPDECK_TOKEN environment variable, then role_store.token, then the
// contents of role_store.token_file. An empty result is not an error.
func (c *Config) ResolveToken() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(c.RoleStore.Token); tok != "" {
		return tok, nil
	}
	if c.RoleStore.TokenFile == "" {
		return "", nil
	}
	path, err := expandHome(c.RoleStore.TokenFile)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Config) Validate() error {
	if err := validateURL(c.DashboardURL); err != nil {
		return &ValidationError{Path: "dashboard_url", Err: err}
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: trace, debug, info, warning, error")}
	}
	switch c.Theme {
	case "light", "dark", "system":
	default:
		return &ValidationError{Path: "theme", Err: fmt.Errorf("theme must be one of: light, dark, system")}
	}

	if err := validateURL(c.RoleStore.URL); err != nil {
		return &ValidationError{Path: "role_store.url", Err: err}
	}
	if c.RoleStore.Timeout <= 0 {
		return &ValidationError{Path: "role_store.timeout", Err: fmt.Errorf("timeout must be > 0")}
	}

	if strings.TrimSpace(c.Browser.Command) == "" {
		return &ValidationError{Path: "browser.command", Err: fmt.Errorf("browser command is required")}
	}
	if strings.TrimSpace(c.Browser.Opener) == "" {
		return &ValidationError{Path: "browser.opener", Err: fmt.Errorf("opener is required")}
	}
	if c.Browser.WindowTimeout <= 0 {
		return &ValidationError{Path: "browser.window_timeout", Err: fmt.Errorf("window_timeout must be > 0")}
	}

	if c.Placement.VerifyDelay < 0 {
		return &ValidationError{Path: "placement.verify_delay", Err: fmt.Errorf("verify_delay must be >= 0")}
	}
	if err := validateDelays(c.Placement.MoveDelays); err != nil {
		return &ValidationError{Path: "placement.move_delays", Err: err}
	}
	if err := validateDelays(c.Channel.ResendDelays); err != nil {
		return &ValidationError{Path: "channel.resend_delays", Err: err}
	}
	if c.Channel.PollInterval <= 0 {
		return &ValidationError{Path: "channel.poll_interval", Err: fmt.Errorf("poll_interval must be > 0")}
	}

	if opts := c.LayoutOptions(); opts != nil {
		if opts.Mode == tiling.ModeCustom {
			return &ValidationError{Path: "layout.mode", Err: fmt.Errorf("custom layouts need an explicit rectangle and cannot be a default")}
		}
		if err := opts.Validate(); err != nil {
			return &ValidationError{Path: "layout", Err: err}
		}
	}

	if c.FallbackScreen.Width <= 0 || c.FallbackScreen.Height <= 0 {
		return &ValidationError{Path: "fallback_screen", Err: fmt.Errorf("width and height must be > 0")}
	}
	if strings.TrimSpace(c.Relay.Listen) == "" {
		return &ValidationError{Path: "relay.listen", Err: fmt.Errorf("listen address is required")}
	}
	if strings.TrimSpace(c.StoreServer.Listen) == "" {
		return &ValidationError{Path: "store_server.listen", Err: fmt.Errorf("listen address is required")}
	}
	for i, tok := range c.StoreServer.Tokens {
		if strings.TrimSpace(tok) == "" {
			return &ValidationError{Path: "store_server.tokens", Err: fmt.Errorf("token %d is empty", i)}
		}
	}
	if c.Daemon.DisplayWatchInterval < 0 {
		return &ValidationError{Path: "daemon.display_watch_interval", Err: fmt.Errorf("display_watch_interval must be >= 0")}
	}
	seen := make(map[string]struct{}, len(c.Hotkeys))
	for i, hk := range c.Hotkeys {
		path := fmt.Sprintf("hotkeys[%d]", i)
		if strings.TrimSpace(hk.Keys) == "" {
			return &ValidationError{Path: path + ".keys", Err: fmt.Errorf("keys is required")}
		}
		if _, dup := seen[hk.Keys]; dup {
			return &ValidationError{Path: path + ".keys", Err: fmt.Errorf("%q is bound twice", hk.Keys)}
		}
		seen[hk.Keys] = struct{}{}
		vt, err := placement.ParseViewType(hk.View)
		if err != nil {
			return &ValidationError{Path: path + ".view", Err: err}
		}
		if err := (placement.Request{ViewType: vt, EntityID: hk.ID}).Validate(); err != nil {
			return &ValidationError{Path: path, Err: err}
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func validateDelays(delays []time.Duration) error {
	if len(delays) == 0 {
		return fmt.Errorf("at least one delay is required")
	}
	for i, d := range delays {
		if d < 0 {
			return fmt.Errorf("delay %d is negative", i)
		}
	}
	return nil
}
