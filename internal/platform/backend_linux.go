//go:build linux

package platform

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/benbjohnson/clock"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/1broseidon/popdeck/internal/x11"
)

const clientPollInterval = 100 * time.Millisecond

// BrowserOptions configures how windows are launched.
type BrowserOptions struct {
	// Command is a Chromium-family browser that understands --app.
	Command string
	Args    []string
	// Opener opens a URL in the user's default browser as a plain tab.
	Opener        string
	WindowTimeout time.Duration
}

// LinuxOptions configures a LinuxBackend.
type LinuxOptions struct {
	Browser BrowserOptions
	// NativeSize is reported as the primary display size when RandR is
	// unavailable.
	NativeSize Rect
	Sink       MessageSink
	Clock      clock.Clock
}

// LinuxBackend implements display enumeration and window hosting on X11.
type LinuxBackend struct {
	conn    *x11.Connection
	browser BrowserOptions
	native  Rect
	sink    MessageSink
	clock   clock.Clock

	// openMu serializes launches so the client-list diff attributes the new
	// window to the right request.
	openMu sync.Mutex
}

var (
	_ DisplayEnumerator = (*LinuxBackend)(nil)
	_ DesktopMetrics    = (*LinuxBackend)(nil)
	_ WindowHost        = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, opts LinuxOptions) *LinuxBackend {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Browser.WindowTimeout <= 0 {
		opts.Browser.WindowTimeout = 5 * time.Second
	}
	return &LinuxBackend{
		conn:    conn,
		browser: opts.Browser,
		native:  opts.NativeSize,
		sink:    opts.Sink,
		clock:   opts.Clock,
	}
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay(opts LinuxOptions) (*LinuxBackend, error) {
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn, opts), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// BindKey registers a global key binding on the root window.
func (b *LinuxBackend) BindKey(keySequence string, callback func()) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.BindKey(keySequence, callback)
}

// RunEvents dispatches X events, including key bindings, until ctx is done.
func (b *LinuxBackend) RunEvents(ctx context.Context) {
	conn, err := b.connection()
	if err != nil {
		return
	}
	go func() {
		<-ctx.Done()
		conn.Quit()
	}()
	conn.EventLoop()
}

// Probe resolves the display enumeration capability once.
func (b *LinuxBackend) Probe(ctx context.Context) Capability {
	conn, err := b.connection()
	if err != nil {
		return Unsupported()
	}
	if err := conn.InitRandR(); err != nil {
		logger.Warnf(ctx, "display enumeration unavailable: %v", err)
		return Unsupported()
	}
	return Supported(b)
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays(ctx context.Context) ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}
	logger.Debugf(ctx, "enumerated %d displays", len(displays))
	return displays, nil
}

// Desktop reports the root window size as the available desktop.
func (b *LinuxBackend) Desktop(ctx context.Context) (Desktop, error) {
	conn, err := b.connection()
	if err != nil {
		return Desktop{}, err
	}
	width, height, err := conn.RootGeometry()
	if err != nil {
		return Desktop{}, err
	}
	return Desktop{
		Available: Rect{Width: width, Height: height},
		Native:    b.native,
	}, nil
}

// Open launches an app-mode browser window and waits for the window manager
// to map it.
func (b *LinuxBackend) Open(ctx context.Context, req OpenRequest) (Window, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	if b.browser.Command == "" {
		return nil, fmt.Errorf("no browser command configured: %w", ErrUnsupported)
	}

	b.openMu.Lock()
	defer b.openMu.Unlock()

	before, err := conn.ClientWindows()
	if err != nil {
		return nil, err
	}
	known := make(map[xproto.Window]struct{}, len(before))
	for _, w := range before {
		known[w] = struct{}{}
	}

	args := browserArgs(b.browser.Args, req)
	logger.Debugf(ctx, "launching %s for %q (%s)", b.browser.Command, req.Name, req.Features.Format(req.Bounds))
	if err := start(b.browser.Command, args...); err != nil {
		return nil, err
	}

	id, err := b.waitForNewClient(ctx, conn, known)
	if err != nil {
		return nil, err
	}
	return &linuxWindow{backend: b, id: id, name: req.Name}, nil
}

// OpenTab opens url through the configured opener.
func (b *LinuxBackend) OpenTab(ctx context.Context, url string) error {
	opener := b.browser.Opener
	if opener == "" {
		opener = "xdg-open"
	}
	logger.Debugf(ctx, "opening %s with %s", url, opener)
	return start(opener, url)
}

func (b *LinuxBackend) waitForNewClient(ctx context.Context, conn *x11.Connection, known map[xproto.Window]struct{}) (xproto.Window, error) {
	ticker := b.clock.Ticker(clientPollInterval)
	defer ticker.Stop()
	deadline := b.clock.After(b.browser.WindowTimeout)

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline:
			return 0, fmt.Errorf("no new window appeared within %s", b.browser.WindowTimeout)
		case <-ticker.C:
			clients, err := conn.ClientWindows()
			if err != nil {
				continue
			}
			for _, w := range clients {
				if _, ok := known[w]; !ok {
					return w, nil
				}
			}
		}
	}
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func browserArgs(base []string, req OpenRequest) []string {
	args := append([]string{}, base...)
	args = append(args, "--new-window", "--app="+req.URL)
	if req.Bounds != nil {
		args = append(args,
			fmt.Sprintf("--window-position=%d,%d", req.Bounds.X, req.Bounds.Y),
			fmt.Sprintf("--window-size=%d,%d", req.Bounds.Width, req.Bounds.Height),
		)
	}
	return args
}

func start(command string, args ...string) error {
	cmd := exec.Command(command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", command, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:   m.ID,
		Name: m.Name,
		Bounds: Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
		Primary: m.Primary,
		Scale:   1,
	}
}

type linuxWindow struct {
	backend *LinuxBackend
	id      xproto.Window
	name    string
	closed  atomic.Bool
}

func (w *linuxWindow) ID() WindowID { return WindowID(w.id) }

func (w *linuxWindow) Name() string { return w.name }

// Closed is sticky: once the window leaves the client list it stays closed.
func (w *linuxWindow) Closed() bool {
	if w.closed.Load() {
		return true
	}
	if !w.backend.conn.WindowExists(w.id) {
		w.closed.Store(true)
		return true
	}
	return false
}

func (w *linuxWindow) Bounds(_ context.Context) (Rect, error) {
	x, y, width, height, err := w.backend.conn.WindowGeometry(w.id)
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: x, Y: y, Width: width, Height: height}, nil
}

func (w *linuxWindow) MoveResize(_ context.Context, bounds Rect) error {
	if w.Closed() {
		return fmt.Errorf("window %d is closed", w.id)
	}
	return w.backend.conn.MoveResizeWindow(w.id, bounds.X, bounds.Y, bounds.Width, bounds.Height)
}

func (w *linuxWindow) Focus(_ context.Context) error {
	if w.Closed() {
		return fmt.Errorf("window %d is closed", w.id)
	}
	return w.backend.conn.FocusWindow(w.id)
}

func (w *linuxWindow) PostMessage(_ context.Context, data []byte) error {
	if w.backend.sink == nil {
		return ErrUnsupported
	}
	return w.backend.sink.Post(w.name, data)
}

func (w *linuxWindow) Close(_ context.Context) error {
	if w.Closed() {
		return nil
	}
	return w.backend.conn.CloseWindow(w.id)
}
