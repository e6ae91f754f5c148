package navigation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// Event types emitted by the engine.
const (
	EventRouted   = "routed"
	EventStep     = "step"
	EventOffRoute = "offroute"
	EventReroute  = "reroute"
	EventArrived  = "arrived"
	EventEnded    = "ended"
	EventObstacle = "obstacle"
)

// Event is a change in a session delivered to subscribers.
type Event struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	State     State            `json:"state"`
	StepIndex int              `json:"step_index"`
	Step      *directions.Step `json:"step,omitempty"`
	Fix       *Fix             `json:"fix,omitempty"`
	Obstacle  *obstacle.Report `json:"obstacle,omitempty"`
	At        time.Time        `json:"at"`
}

// subscriptionBuffer is the per-subscription event channel depth. The tracker
// never blocks on a subscriber; events beyond the buffer are dropped.
const subscriptionBuffer = 16

// Subscription is a live feed of one session's events.
type Subscription struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`

	events chan Event
}

// Events is the subscription's event feed. It is closed on Unsubscribe and
// when the session reaches a terminal state.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// subscribers fans session events out to subscriptions.
type subscribers struct {
	mu sync.RWMutex
	// session ID → subscription ID → subscription
	bySession map[string]map[string]*Subscription
}

func newSubscribers() *subscribers {
	return &subscribers{bySession: make(map[string]map[string]*Subscription)}
}

func (s *subscribers) add(sessionID string) *Subscription {
	sub := &Subscription{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now(),
		events:    make(chan Event, subscriptionBuffer),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bySession[sessionID] == nil {
		s.bySession[sessionID] = make(map[string]*Subscription)
	}
	s.bySession[sessionID][sub.ID] = sub

	return sub
}

func (s *subscribers) remove(sessionID, subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.bySession[sessionID]
	if sub, ok := subs[subID]; ok {
		close(sub.events)
		delete(subs, subID)
	}
	if len(subs) == 0 {
		delete(s.bySession, sessionID)
	}
}

// publish delivers ev to every subscriber of its session, dropping it for
// subscribers whose buffer is full.
func (s *subscribers) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.bySession[ev.SessionID] {
		select {
		case sub.events <- ev:
		default:
		}
	}
}

// closeSession closes and removes every subscription of sessionID.
func (s *subscribers) closeSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.bySession[sessionID] {
		close(sub.events)
	}
	delete(s.bySession, sessionID)
}
