package navigation

import (
	"context"
	"sync"
	"time"

	"github.com/wayfind/wayfind/internal/directions"
)

// State is the lifecycle state of a session.
type State string

// Session states. A session starts navigating, bounces through offroute
// while drifting and replanning, and terminates in arrived or ended.
const (
	StateNavigating State = "navigating"
	StateOffRoute   State = "offroute"
	StateArrived    State = "arrived"
	StateEnded      State = "ended"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateArrived || s == StateEnded
}

// session is the engine's mutable view of one navigation session.
type session struct {
	mu sync.RWMutex

	id          string
	destination string
	state       State
	route       *directions.Route
	stepIndex   int
	reroutes    int
	lastFix     *Fix
	createdAt   time.Time
	updatedAt   time.Time

	cancel context.CancelFunc
}

// Snapshot is an immutable copy of a session, also the session's JSON
// document served over HTTP and filtered by the meta endpoints.
type Snapshot struct {
	ID          string            `json:"id"`
	Destination string            `json:"destination"`
	State       State             `json:"state"`
	StepIndex   int               `json:"step_index"`
	Step        *directions.Step  `json:"step,omitempty"`
	Route       *directions.Route `json:"route,omitempty"`
	Reroutes    int               `json:"reroutes"`
	LastFix     *Fix              `json:"last_fix,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// snapshot assumes at least a read lock is held.
func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		Destination: s.destination,
		State:       s.state,
		StepIndex:   s.stepIndex,
		Route:       s.route,
		Reroutes:    s.reroutes,
		LastFix:     s.lastFix,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}

	if s.route != nil && s.stepIndex < len(s.route.Steps) {
		step := s.route.Steps[s.stepIndex]
		snap.Step = &step
	}

	return snap
}

// Snapshot returns a copy of the session safe to hand out.
func (s *session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}
