package daemon

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/popdeck/internal/coordinator"
	"github.com/1broseidon/popdeck/internal/identity"
	"github.com/1broseidon/popdeck/internal/placement"
	"github.com/1broseidon/popdeck/internal/platform"
	"github.com/1broseidon/popdeck/internal/platform/fakeplatform"
	"github.com/1broseidon/popdeck/internal/rolestore"
	"github.com/1broseidon/popdeck/internal/screens"
	"github.com/1broseidon/popdeck/internal/storage"
	"github.com/1broseidon/popdeck/internal/tiling"
)

type fakeSource struct {
	mu   sync.Mutex
	list []screens.Screen
}

func (f *fakeSource) set(list ...screens.Screen) {
	f.mu.Lock()
	f.list = list
	f.mu.Unlock()
}

func (f *fakeSource) Detect(context.Context) []screens.Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]screens.Screen(nil), f.list...)
}

type fakeTarget struct {
	mu        sync.Mutex
	state     coordinator.State
	list      []screens.Screen
	source    *fakeSource
	refreshes int
}

func (f *fakeTarget) State() coordinator.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTarget) Screens() []screens.Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]screens.Screen(nil), f.list...)
}

func (f *fakeTarget) Refresh(ctx context.Context) (coordinator.State, error) {
	list := f.source.Detect(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	f.list = list
	return f.state, nil
}

func (f *fakeTarget) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

var (
	left  = screens.Screen{ID: 0, Width: 1920, Height: 1080, IsPrimary: true}
	right = screens.Screen{ID: 1, Left: 1920, Width: 1920, Height: 1080}
)

func TestReconcileNow_SkipsBeforeInitialization(t *testing.T) {
	src := &fakeSource{}
	src.set(left, right)
	target := &fakeTarget{state: coordinator.StateUninitialized, source: src}

	r := NewReconciler(ReconcilerConfig{}, src, target)
	require.False(t, r.ReconcileNow(context.Background()))
	require.Zero(t, target.refreshCount())
}

func TestReconcileNow_RefreshesOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(left, right)
	target := &fakeTarget{state: coordinator.StateReady, list: []screens.Screen{left, right}, source: src}
	r := NewReconciler(ReconcilerConfig{}, src, target)

	require.False(t, r.ReconcileNow(ctx))

	src.set(left)
	require.True(t, r.ReconcileNow(ctx))
	require.Equal(t, 1, target.refreshCount())
	require.False(t, r.ReconcileNow(ctx))

	moved := right
	moved.Left = -1920
	src.set(left, moved)
	require.True(t, r.ReconcileNow(ctx))
	require.Equal(t, 2, target.refreshCount())
}

func TestRun_TicksWithClock(t *testing.T) {
	mock := clock.NewMock()
	src := &fakeSource{}
	src.set(left, right)
	target := &fakeTarget{state: coordinator.StateAwaitingAssignment, list: []screens.Screen{left}, source: src}
	r := NewReconciler(ReconcilerConfig{Interval: time.Second, Clock: mock}, src, target)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return target.refreshCount() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// newCoordinator wires a real coordinator to fake displays and an in-process
// role store.
func newCoordinator(t *testing.T, displays *fakeplatform.Displays) (*coordinator.Coordinator, *screens.Detector) {
	t.Helper()
	const token = "daemon-token"
	srv := httptest.NewServer(rolestore.NewServer(context.Background(), rolestore.NewStore(), []string{token}).Handler())
	t.Cleanup(srv.Close)
	client, err := rolestore.NewClient(rolestore.ClientOptions{BaseURL: srv.URL + "/api", Token: token, Timeout: 2 * time.Second})
	require.NoError(t, err)

	sched := placement.NewScheduler(clock.NewMock())
	t.Cleanup(sched.Stop)
	kv := storage.NewMemoryStore()
	detector := screens.NewDetector(platform.Supported(displays), nil, platform.Rect{})

	coord := coordinator.New(coordinator.Deps{
		Detector: detector,
		Identity: identity.NewProvider(kv),
		Store:    client,
		Placer: placement.NewEngine(&fakeplatform.Host{}, placement.Options{
			DashboardURL: "http://localhost:3000",
			Scheduler:    sched,
			Cycler:       tiling.NewCycler(),
		}),
		Layouts: coordinator.NewLayoutPrefs(kv, nil),
	})
	return coord, detector
}

func TestReconcileNow_SeesDisplayAttachedBeforePopOut(t *testing.T) {
	ctx := context.Background()
	displays := fakeplatform.NewDisplays(
		platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		platform.Rect{X: 1920, Y: 0, Width: 1920, Height: 1080},
	)
	coord, detector := newCoordinator(t, displays)

	_, err := coord.Initialize(ctx)
	require.NoError(t, err)
	require.NoError(t, coord.CompleteAssignment(ctx, map[int]rolestore.Role{0: rolestore.RoleGeneral, 1: rolestore.RoleDetailed}))

	r := NewReconciler(ReconcilerConfig{}, detector, coord)
	require.False(t, r.ReconcileNow(ctx))

	displays.Set(
		platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080},
		platform.Rect{X: 1920, Y: 0, Width: 1920, Height: 1080},
		platform.Rect{X: 3840, Y: 0, Width: 2560, Height: 1440},
	)
	_, err = coord.PopOut(ctx, placement.Request{ViewType: placement.ViewMetrics})
	require.NoError(t, err)

	require.True(t, r.ReconcileNow(ctx))
	require.Equal(t, coordinator.StateAwaitingAssignment, coord.State())
	require.Len(t, coord.Screens(), 3)
	require.False(t, r.ReconcileNow(ctx))
}
