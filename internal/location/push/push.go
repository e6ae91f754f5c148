// Package push holds the latest fix POSTed by a device over the HTTP API,
// for phones that report their own GPS and heading.
package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wayfind/wayfind/internal/navigation"
)

// ErrNoFix indicates no fix has been pushed yet.
var ErrNoFix = errors.New("no location fix received yet")

// DefaultStaleAfter is how old the latest fix may be before the provider
// reports unhealthy.
const DefaultStaleAfter = time.Minute

// Provider stores the most recent pushed fix.
type Provider struct {
	mu         sync.RWMutex
	fix        navigation.Fix
	hasFix     bool
	staleAfter time.Duration

	now func() time.Time
}

// New returns a new instance of Provider. A non-positive staleAfter uses
// DefaultStaleAfter.
func New(staleAfter time.Duration) *Provider {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Provider{staleAfter: staleAfter, now: time.Now}
}

// Set records fix as the walker's latest known location. A zero fix time is
// stamped with the current time.
func (p *Provider) Set(fix navigation.Fix) {
	if fix.Time.IsZero() {
		fix.Time = p.now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fix = fix
	p.hasFix = true
}

// CurrentFix satisfies navigation.Provider. It returns ErrNoFix until the
// first push.
func (p *Provider) CurrentFix(context.Context) (navigation.Fix, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.hasFix {
		return navigation.Fix{}, ErrNoFix
	}

	return p.fix, nil
}

// IsHealthy satisfies healthcheck.Client. The provider is healthy while the
// latest fix is fresher than the staleness window.
func (p *Provider) IsHealthy(context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.hasFix && p.now().Sub(p.fix.Time) <= p.staleAfter
}
