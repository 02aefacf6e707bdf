// Package app builds every popdeck component once and wires them together.
package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/channel"
	"github.com/1broseidon/popdeck/internal/config"
	"github.com/1broseidon/popdeck/internal/coordinator"
	"github.com/1broseidon/popdeck/internal/events"
	"github.com/1broseidon/popdeck/internal/identity"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/relay"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/runtimepath"
	"github.com/1broseidon/popdeck/internal/screens"
	"github.com/1broseidon/popdeck/internal/storage"
	"github.com/1broseidon/popdeck/internal/tiling"
)

// Overrides replaces platform pieces that New would otherwise build from the
// X11 display. Zero fields are built normally.
type Overrides struct {
	Host       platform.WindowHost
	Capability *platform.Capability
	Metrics    platform.DesktopMetrics
	KV         storage.KV
	Clock      clock.Clock
}

// App is the application context.
type App struct {
	Config      *config.Config
	KV          storage.KV
	Identity    *identity.Provider
	Bus         *events.Bus
	Mailbox     *relay.Mailbox
	Relay       *relay.Server
	Detector    *screens.Detector
	Store       *rolestore.Client
	Scheduler   *placement.Scheduler
	Engine      *placement.Engine
	Themes      *channel.ThemeSync
	Sender      *channel.Sender
	Layouts     *coordinator.LayoutPrefs
	Coordinator *coordinator.Coordinator

	backend *platform.LinuxBackend
}

// New constructs the application from cfg.
func New(ctx context.Context, cfg *config.Config, o Overrides) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := &App{Config: cfg, Bus: events.NewBus(), Mailbox: relay.NewMailbox()}

	clk := o.Clock
	if clk == nil {
		clk = clock.New()
	}

	a.KV = o.KV
	if a.KV == nil {
		path := cfg.StateFile
		if path == "" {
			p, err := runtimepath.StatePath()
			if err != nil {
				logger.Warnf(ctx, "no state file location, storage is unavailable: %v", err)
			}
			path = p
		}
		a.KV = storage.NewFileStore(path)
	}
	a.Identity = identity.NewProvider(a.KV)

	fallback := platform.Rect{Width: cfg.FallbackScreen.Width, Height: cfg.FallbackScreen.Height}
	host, capability, metrics := o.Host, o.Capability, o.Metrics
	if host == nil {
		backend, err := platform.NewLinuxBackendFromDisplay(platform.LinuxOptions{
			Browser: platform.BrowserOptions{
				Command:       cfg.Browser.Command,
				Args:          cfg.Browser.Args,
				Opener:        cfg.Browser.Opener,
				WindowTimeout: cfg.Browser.WindowTimeout,
			},
			NativeSize: fallback,
			Sink:       a.Mailbox,
			Clock:      clk,
		})
		if err != nil {
			return nil, err
		}
		a.backend = backend
		host = backend
		if metrics == nil {
			metrics = backend
		}
		if capability == nil {
			probed := backend.Probe(ctx)
			capability = &probed
		}
	}
	if capability == nil {
		unsupported := platform.Unsupported()
		capability = &unsupported
	}
	logger.Infof(ctx, "display enumeration: %s", capability)
	a.Detector = screens.NewDetector(*capability, metrics, fallback)

	token, err := cfg.ResolveToken()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store, err = rolestore.NewClient(rolestore.ClientOptions{
		BaseURL: cfg.RoleStore.URL,
		Token:   token,
		Timeout: cfg.RoleStore.Timeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid role store settings: %w", err)
	}

	a.Scheduler = placement.NewScheduler(clk)
	a.Engine = placement.NewEngine(host, placement.Options{
		DashboardURL: cfg.DashboardURL,
		VerifyDelay:  cfg.Placement.VerifyDelay,
		MoveDelays:   cfg.Placement.MoveDelays,
		Scheduler:    a.Scheduler,
		Cycler:       tiling.NewCycler(),
	})

	defTheme, err := channel.ParseTheme(cfg.Theme)
	if err != nil {
		defTheme = channel.ThemeSystem
	}
	a.Themes = channel.NewThemeSync(ctx, a.KV, a.Bus, clk, defTheme)
	a.Sender = channel.NewSender(a.Scheduler, a.Themes, channel.SenderOptions{
		ResendDelays: cfg.Channel.ResendDelays,
		PollInterval: cfg.Channel.PollInterval,
		OnClosed:     a.windowClosed,
	})
	a.Relay = relay.NewServer(ctx, a.Mailbox, a.Themes)

	a.Layouts = coordinator.NewLayoutPrefs(a.KV, cfg.LayoutOptions())
	a.Coordinator = coordinator.New(coordinator.Deps{
		Detector: a.Detector,
		Identity: a.Identity,
		Store:    a.Store,
		Placer:   a.Engine,
		Sender:   a.Sender,
		Bus:      a.Bus,
		Layouts:  a.Layouts,
	})
	return a, nil
}

// windowClosed drops the relay mailbox of a closed window unless a newer
// window took over its name.
func (a *App) windowClosed(ctx context.Context, name string) {
	if a.Themes.IsTracked(name) {
		return
	}
	logger.Debugf(ctx, "window %s closed, dropping its mailbox", name)
	a.Mailbox.Drop(name)
}

// Backend returns the X11 backend, or nil when the host was overridden.
func (a *App) Backend() *platform.LinuxBackend {
	return a.backend
}

// Close stops deferred work and releases the display connection.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Sender != nil {
		a.Sender.Close()
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.backend != nil {
		a.backend.Disconnect()
	}
}
