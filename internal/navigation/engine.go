// Package navigation tracks walking sessions: it polls a location provider,
// advances the walker through route steps, detects off-route drift, and
// re-plans the route when it happens.
package navigation

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"

	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/geo"
	"github.com/wayfind/wayfind/internal/metrics"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// ErrSessionNotFound indicates no session exists for the given ID.
var ErrSessionNotFound = errors.New("session not found")

// Defaults for Options. The advance radius matches a GPS fix's typical
// accuracy; the off-route radius is wide enough to not re-plan on every
// drifting fix.
const (
	DefaultUpdateInterval = 10 * time.Second
	DefaultAdvanceRadius  = 3
	DefaultOffRouteRadius = 50
)

// Options tune the tracking loop.
type Options struct {
	// UpdateInterval is the delay between location polls.
	UpdateInterval time.Duration

	// AdvanceRadius is how close, in meters, a fix must be to the current
	// step's end before the session advances to the next step.
	AdvanceRadius float64

	// OffRouteRadius is how far, in meters, a fix may be from the nearest
	// step end before the session is considered off route.
	OffRouteRadius float64
}

func (o Options) withDefaults() Options {
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = DefaultUpdateInterval
	}
	if o.AdvanceRadius <= 0 {
		o.AdvanceRadius = DefaultAdvanceRadius
	}
	if o.OffRouteRadius <= 0 {
		o.OffRouteRadius = DefaultOffRouteRadius
	}
	return o
}

// Engine owns all navigation sessions. Each session gets its own tracking
// goroutine; Engine methods are safe for concurrent use.
type Engine struct {
	log      log.Logger
	provider Provider
	router   Router
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*session

	subs *subscribers
}

// NewEngine creates an Engine reading fixes from provider and planning
// routes with router.
func NewEngine(logger log.Logger, provider Provider, router Router, opts Options) *Engine {
	return &Engine{
		log:      logger,
		provider: provider,
		router:   router,
		opts:     opts.withDefaults(),
		sessions: make(map[string]*session),
		subs:     newSubscribers(),
	}
}

// Start plans a route from the walker's current location to destination and
// begins tracking it. ctx bounds the initial fix and route requests only;
// tracking continues until the session terminates or the engine closes.
func (e *Engine) Start(ctx context.Context, destination string) (Snapshot, error) {
	fix, err := e.provider.CurrentFix(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "current location")
	}

	route, err := e.router.Route(ctx, fix.Point, destination)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "plan route")
	}

	if fix.Heading != nil {
		route.Steps = directions.RewriteTurns(route.Steps, *fix.Heading)
	}

	now := time.Now()
	s := &session{
		id:          uuid.New().String(),
		destination: destination,
		state:       StateNavigating,
		route:       route,
		lastFix:     &fix,
		createdAt:   now,
		updatedAt:   now,
	}

	trackCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()

	snap := s.Snapshot()
	e.subs.publish(Event{
		Type:      EventRouted,
		SessionID: s.id,
		State:     StateNavigating,
		Step:      snap.Step,
		Fix:       &fix,
		At:        now,
	})

	e.log.With("session", s.id, "destination", destination, "steps", len(route.Steps)).Info("session started")

	go e.track(trackCtx, s)

	return snap, nil
}

// Get returns a snapshot of the session with the given ID.
func (e *Engine) Get(id string) (Snapshot, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()

	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}

	return s.Snapshot(), nil
}

// List returns a snapshot of every session, oldest first.
func (e *Engine) List() []Snapshot {
	e.mu.RLock()
	snaps := make([]Snapshot, 0, len(e.sessions))
	for _, s := range e.sessions {
		snaps = append(snaps, s.Snapshot())
	}
	e.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})

	return snaps
}

// End stops tracking the session with the given ID. Ending a terminated
// session is a no-op.
func (e *Engine) End(id string) error {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.state = StateEnded
	s.updatedAt = time.Now()
	s.cancel()
	s.mu.Unlock()

	metrics.ActiveSessions.Dec()

	e.subs.publish(Event{Type: EventEnded, SessionID: id, State: StateEnded, At: time.Now()})
	e.subs.closeSession(id)

	e.log.With("session", id).Info("session ended")

	return nil
}

// Subscribe returns a feed of the session's events. The feed of a terminated
// session is closed immediately.
func (e *Engine) Subscribe(sessionID string) (*Subscription, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	sub := e.subs.add(sessionID)
	if s.Snapshot().State.Terminal() {
		e.subs.remove(sessionID, sub.ID)
	}

	return sub, nil
}

// Unsubscribe closes a subscription created with Subscribe.
func (e *Engine) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	e.subs.remove(sub.SessionID, sub.ID)
}

// NotifyObstacle emits an obstacle event on an active session.
func (e *Engine) NotifyObstacle(sessionID string, report obstacle.Report) error {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()

	if !ok {
		return ErrSessionNotFound
	}

	snap := s.Snapshot()
	if snap.State.Terminal() {
		return nil
	}

	e.subs.publish(Event{
		Type:      EventObstacle,
		SessionID: sessionID,
		State:     snap.State,
		StepIndex: snap.StepIndex,
		Obstacle:  &report,
		At:        time.Now(),
	})

	return nil
}

// Close ends every active session. The engine must not be reused afterwards.
func (e *Engine) Close() {
	for _, snap := range e.List() {
		if !snap.State.Terminal() {
			_ = e.End(snap.ID)
		}
	}
}

func (e *Engine) track(ctx context.Context, s *session) {
	ticker := time.NewTicker(e.opts.UpdateInterval)
	defer ticker.Stop()
	defer s.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := e.tick(ctx, s); done {
				return
			}
		}
	}
}

// tick performs one iteration of the tracking loop and reports whether the
// session terminated.
func (e *Engine) tick(ctx context.Context, s *session) bool {
	fix, err := e.provider.CurrentFix(ctx)
	if err != nil {
		metrics.Errors.WithLabelValues("navigation", "fix").Inc()
		e.log.With("session", s.id, "error", err).Info("failed to read location fix")
		return false
	}

	now := time.Now()

	s.mu.Lock()

	if s.state.Terminal() {
		s.mu.Unlock()
		return true
	}

	s.lastFix = &fix
	s.updatedAt = now

	if s.route == nil || s.stepIndex >= len(s.route.Steps) {
		// An empty or exhausted route has nowhere left to go.
		s.state = StateArrived
		s.mu.Unlock()
		e.finish(s.id, &fix, now)
		return true
	}

	step := s.route.Steps[s.stepIndex]

	if geo.Distance(fix.Point, step.End) <= e.opts.AdvanceRadius {
		s.stepIndex++
		s.state = StateNavigating
		metrics.StepsAdvanced.Inc()

		if s.stepIndex >= len(s.route.Steps) {
			s.state = StateArrived
			s.mu.Unlock()
			e.finish(s.id, &fix, now)
			return true
		}

		next := s.route.Steps[s.stepIndex]
		idx := s.stepIndex
		s.mu.Unlock()

		e.subs.publish(Event{
			Type:      EventStep,
			SessionID: s.id,
			State:     StateNavigating,
			StepIndex: idx,
			Step:      &next,
			Fix:       &fix,
			At:        now,
		})

		return false
	}

	if nearestStepDistance(fix.Point, s.route.Steps) <= e.opts.OffRouteRadius {
		// A walker can re-enter the corridor on their own while a failed
		// reroute left the session off route.
		backOnRoute := s.state == StateOffRoute
		if backOnRoute {
			s.state = StateNavigating
			s.updatedAt = now
		}
		idx := s.stepIndex
		current := s.route.Steps[idx]
		s.mu.Unlock()

		if backOnRoute {
			e.subs.publish(Event{
				Type:      EventRouted,
				SessionID: s.id,
				State:     StateNavigating,
				StepIndex: idx,
				Step:      &current,
				Fix:       &fix,
				At:        now,
			})
			e.log.With("session", s.id).Info("back on route")
		}

		return false
	}

	s.state = StateOffRoute
	idx := s.stepIndex
	destination := s.destination
	s.mu.Unlock()

	e.subs.publish(Event{
		Type:      EventOffRoute,
		SessionID: s.id,
		State:     StateOffRoute,
		StepIndex: idx,
		Fix:       &fix,
		At:        now,
	})

	e.log.With("session", s.id).Info("off route, replanning")

	// Re-plan from the current fix. A failed re-plan keeps the old route and
	// is retried on the next tick.
	route, err := e.router.Route(ctx, fix.Point, destination)
	if err != nil {
		metrics.Errors.WithLabelValues("navigation", "reroute").Inc()
		e.log.With("session", s.id, "error", err).Info("reroute failed")
		return false
	}

	if fix.Heading != nil {
		route.Steps = directions.RewriteTurns(route.Steps, *fix.Heading)
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return true
	}
	s.route = route
	s.stepIndex = 0
	s.reroutes++
	s.state = StateNavigating
	s.updatedAt = time.Now()
	var first *directions.Step
	if len(route.Steps) > 0 {
		f := route.Steps[0]
		first = &f
	}
	s.mu.Unlock()

	metrics.Reroutes.Inc()

	e.subs.publish(Event{
		Type:      EventReroute,
		SessionID: s.id,
		State:     StateNavigating,
		Step:      first,
		Fix:       &fix,
		At:        time.Now(),
	})

	return false
}

// finish records arrival and tears the session's subscriptions down.
func (e *Engine) finish(sessionID string, fix *Fix, at time.Time) {
	metrics.ActiveSessions.Dec()

	e.subs.publish(Event{
		Type:      EventArrived,
		SessionID: sessionID,
		State:     StateArrived,
		Fix:       fix,
		At:        at,
	})
	e.subs.closeSession(sessionID)

	e.log.With("session", sessionID).Info("arrived at destination")
}

// nearestStepDistance is the distance from p to the closest step end on the
// route, in meters.
func nearestStepDistance(p geo.Point, steps []directions.Step) float64 {
	min := math.Inf(1)
	for _, step := range steps {
		if d := geo.Distance(p, step.End); d < min {
			min = d
		}
	}
	return min
}
