package navigation

import (
	"context"
	"time"

	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/geo"
)

// Fix is a single location reading.
type Fix struct {
	Point geo.Point `json:"point"`
	// Heading is the walker's compass heading in degrees, when the provider
	// knows it. IP geolocation has no heading; device providers usually do.
	Heading *float64  `json:"heading,omitempty"`
	Time    time.Time `json:"time"`
}

// Provider is a source of location fixes. Each location provider
// implementation satisfies this interface.
type Provider interface {
	// CurrentFix returns the walker's current location.
	CurrentFix(ctx context.Context) (Fix, error)
}

// Router plans a walking route from an origin to a free-form destination
// address. *directions.Client satisfies it.
type Router interface {
	Route(ctx context.Context, origin geo.Point, destination string) (*directions.Route, error)
}
