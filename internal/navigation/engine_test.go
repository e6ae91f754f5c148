package navigation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/packethost/pkg/log"
	"github.com/stretchr/testify/require"

	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/geo"
	. "github.com/wayfind/wayfind/internal/navigation"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// fakeProvider plays fixes back in order, repeating the last one forever.
type fakeProvider struct {
	mu    sync.Mutex
	fixes []Fix
	err   error
}

func (p *fakeProvider) CurrentFix(context.Context) (Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return Fix{}, p.err
	}

	fix := p.fixes[0]
	if len(p.fixes) > 1 {
		p.fixes = p.fixes[1:]
	}
	return fix, nil
}

// fakeRouter plays routes back in order, repeating the last one forever.
// Calls beyond errAfter fail, 0 meaning never.
type fakeRouter struct {
	mu       sync.Mutex
	routes   []*directions.Route
	err      error
	errAfter int
	calls    int
}

func (r *fakeRouter) Route(_ context.Context, _ geo.Point, _ string) (*directions.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil && (r.errAfter == 0 || r.calls > r.errAfter) {
		return nil, r.err
	}

	route := *r.routes[0]
	if len(r.routes) > 1 {
		r.routes = r.routes[1:]
	}
	return &route, nil
}

// Points roughly 11 meters apart going north; farAway is over 100 meters
// east of all of them.
var (
	p0      = geo.Point{Lat: 37.4000, Lng: -122.0777}
	p1      = geo.Point{Lat: 37.4001, Lng: -122.0777}
	p2      = geo.Point{Lat: 37.4002, Lng: -122.0777}
	farAway = geo.Point{Lat: 37.4000, Lng: -122.0765}
)

func routeVia(points ...geo.Point) *directions.Route {
	steps := make([]directions.Step, len(points))
	for i, p := range points {
		steps[i] = directions.Step{Instruction: "Continue", End: p}
	}
	return &directions.Route{Destination: "test destination", Steps: steps}
}

func fixAt(p geo.Point) Fix {
	return Fix{Point: p, Time: time.Now()}
}

func obstacleReport(label string) obstacle.Report {
	return obstacle.Report{ID: "report-1", Label: label, Confidence: 0.9, At: time.Now()}
}

func waitEvent(t *testing.T, sub *Subscription, eventType string) Event {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("event feed closed while waiting for %q", eventType)
			}
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the event feed to close")
		}
	}
}

func TestStart(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: time.Hour})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	if snap.ID == "" {
		t.Error("snapshot has no ID")
	}
	if snap.State != StateNavigating {
		t.Errorf("unexpected state: got %v want %v", snap.State, StateNavigating)
	}
	if snap.Step == nil {
		t.Fatal("snapshot has no current step")
	}
	if len(snap.Route.Steps) != 2 {
		t.Errorf("unexpected step count: got %v want 2", len(snap.Route.Steps))
	}

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != snap.ID {
		t.Errorf("Get returned a different session: got %v want %v", got.ID, snap.ID)
	}
}

func TestStartRewritesTurnsWithHeading(t *testing.T) {
	heading := 0.0
	fix := fixAt(p0)
	fix.Heading = &heading

	provider := &fakeProvider{fixes: []Fix{fix}}
	route := routeVia(p1)
	route.Steps[0].Instruction = "Head east on Main St"
	router := &fakeRouter{routes: []*directions.Route{route}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: time.Hour})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	if got := snap.Step.Instruction; got != "Head right on Main St" {
		t.Fatalf("instruction was not rewritten: %q", got)
	}
}

func TestStartErrors(t *testing.T) {
	cases := []struct {
		Name     string
		Provider *fakeProvider
		Router   *fakeRouter
	}{
		{
			Name:     "ProviderFails",
			Provider: &fakeProvider{err: errors.New("no gps")},
			Router:   &fakeRouter{routes: []*directions.Route{routeVia(p1)}},
		},
		{
			Name:     "RouterFails",
			Provider: &fakeProvider{fixes: []Fix{fixAt(p0)}},
			Router:   &fakeRouter{err: directions.ErrNoRoute},
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			engine := NewEngine(log.Test(t, t.Name()), tc.Provider, tc.Router, Options{UpdateInterval: time.Hour})
			defer engine.Close()

			if _, err := engine.Start(context.Background(), "test destination"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestTrackAdvancesAndArrives(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0), fixAt(p1), fixAt(p2)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: 50 * time.Millisecond})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)
	defer engine.Unsubscribe(sub)

	step := waitEvent(t, sub, EventStep)
	if step.StepIndex != 1 {
		t.Errorf("unexpected step index: got %v want 1", step.StepIndex)
	}

	waitEvent(t, sub, EventArrived)
	waitClosed(t, sub)

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateArrived {
		t.Errorf("unexpected state: got %v want %v", got.State, StateArrived)
	}
}

func TestTrackReroutesWhenOffRoute(t *testing.T) {
	// The second route's steps surround farAway so the session settles
	// there without advancing or drifting off again.
	settled := geo.Point{Lat: 37.4002, Lng: -122.0765}

	provider := &fakeProvider{fixes: []Fix{fixAt(p0), fixAt(farAway)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2), routeVia(settled)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: 50 * time.Millisecond})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)
	defer engine.Unsubscribe(sub)

	waitEvent(t, sub, EventOffRoute)
	waitEvent(t, sub, EventReroute)

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Reroutes != 1 {
		t.Errorf("unexpected reroute count: got %v want 1", got.Reroutes)
	}
	if got.State != StateNavigating {
		t.Errorf("unexpected state: got %v want %v", got.State, StateNavigating)
	}
	if got.StepIndex != 0 {
		t.Errorf("step index was not reset: got %v", got.StepIndex)
	}
}

func TestTrackKeepsRouteWhenRerouteFails(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0), fixAt(farAway)}}
	router := &fakeRouter{
		routes:   []*directions.Route{routeVia(p1, p2)},
		err:      errors.New("directions unavailable"),
		errAfter: 1,
	}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: 50 * time.Millisecond})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)
	defer engine.Unsubscribe(sub)

	waitEvent(t, sub, EventOffRoute)

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateOffRoute {
		t.Errorf("unexpected state: got %v want %v", got.State, StateOffRoute)
	}
	if got.Reroutes != 0 {
		t.Errorf("unexpected reroute count: got %v want 0", got.Reroutes)
	}
	if len(got.Route.Steps) != 2 {
		t.Errorf("route was replaced: %v steps", len(got.Route.Steps))
	}
}

func TestTrackRecoversWhenBackOnRoute(t *testing.T) {
	// The walker drifts off, the reroute fails, then they walk back into
	// the corridor on their own.
	provider := &fakeProvider{fixes: []Fix{fixAt(p0), fixAt(farAway), fixAt(p0)}}
	router := &fakeRouter{
		routes:   []*directions.Route{routeVia(p1, p2)},
		err:      errors.New("directions unavailable"),
		errAfter: 1,
	}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: 50 * time.Millisecond})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)
	defer engine.Unsubscribe(sub)

	waitEvent(t, sub, EventOffRoute)

	ev := waitEvent(t, sub, EventRouted)
	if ev.State != StateNavigating {
		t.Errorf("unexpected event state: got %v want %v", ev.State, StateNavigating)
	}

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateNavigating {
		t.Errorf("unexpected state: got %v want %v", got.State, StateNavigating)
	}
	if got.Reroutes != 0 {
		t.Errorf("unexpected reroute count: got %v want 0", got.Reroutes)
	}
}

func TestEnd(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: time.Hour})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)

	if err := engine.End(snap.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	waitEvent(t, sub, EventEnded)
	waitClosed(t, sub)

	got, err := engine.Get(snap.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateEnded {
		t.Errorf("unexpected state: got %v want %v", got.State, StateEnded)
	}

	// Ending a terminated session is a no-op.
	if err := engine.End(snap.ID); err != nil {
		t.Fatalf("End() on a terminated session error = %v", err)
	}

	if err := engine.End("no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubscribeUnknownSession(t *testing.T) {
	engine := NewEngine(
		log.Test(t, t.Name()),
		&fakeProvider{fixes: []Fix{fixAt(p0)}},
		&fakeRouter{routes: []*directions.Route{routeVia(p1)}},
		Options{UpdateInterval: time.Hour},
	)
	defer engine.Close()

	if _, err := engine.Subscribe("no-such-session"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestNotifyObstacle(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: time.Hour})
	defer engine.Close()

	snap, err := engine.Start(context.Background(), "test destination")
	require.NoError(t, err)

	sub, err := engine.Subscribe(snap.ID)
	require.NoError(t, err)
	defer engine.Unsubscribe(sub)

	report := obstacleReport("parked scooter")
	if err := engine.NotifyObstacle(snap.ID, report); err != nil {
		t.Fatalf("NotifyObstacle() error = %v", err)
	}

	ev := waitEvent(t, sub, EventObstacle)
	if ev.Obstacle == nil || ev.Obstacle.Label != "parked scooter" {
		t.Fatalf("unexpected obstacle event: %+v", ev)
	}

	if err := engine.NotifyObstacle("no-such-session", report); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestList(t *testing.T) {
	provider := &fakeProvider{fixes: []Fix{fixAt(p0)}}
	router := &fakeRouter{routes: []*directions.Route{routeVia(p1, p2)}}

	engine := NewEngine(log.Test(t, t.Name()), provider, router, Options{UpdateInterval: time.Hour})
	defer engine.Close()

	first, err := engine.Start(context.Background(), "first destination")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	second, err := engine.Start(context.Background(), "second destination")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	snaps := engine.List()
	if len(snaps) != 2 {
		t.Fatalf("unexpected session count: got %v want 2", len(snaps))
	}

	listed := map[string]bool{snaps[0].ID: true, snaps[1].ID: true}
	if !listed[first.ID] || !listed[second.ID] {
		t.Errorf("List is missing sessions: %+v", snaps)
	}
}
