// Package tracefile replays location fixes recorded in a YAML file. Its
// primary use-case is testing and demoing navigation without a device.
package tracefile

import (
	"context"
	"sync"
	"time"

	"github.com/wayfind/wayfind/internal/geo"
	"github.com/wayfind/wayfind/internal/navigation"
)

// Entry is one recorded fix.
type Entry struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`

	// Heading in degrees, when the recording device knew it.
	Heading *float64 `yaml:"heading"`

	// Repeat holds the fix for this many consecutive reads; defaults to 1.
	Repeat int `yaml:"repeat"`
}

// Provider replays a recorded track, returning the next fix on every read.
type Provider struct {
	mu    sync.Mutex
	fixes []navigation.Fix
	index int
	loop  bool
}

// NewProvider returns a new instance of Provider replaying entries in order.
// When loop is set the track restarts after the last entry, otherwise the
// last fix repeats forever.
func NewProvider(entries []Entry, loop bool) *Provider {
	return &Provider{fixes: expand(entries), loop: loop}
}

// CurrentFix satisfies navigation.Provider.
func (p *Provider) CurrentFix(context.Context) (navigation.Fix, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.fixes) == 0 {
		return navigation.Fix{}, ErrEmptyTrack
	}

	fix := p.fixes[p.index]
	fix.Time = time.Now()

	if p.index < len(p.fixes)-1 {
		p.index++
	} else if p.loop {
		p.index = 0
	}

	return fix, nil
}

// IsHealthy satisfies healthcheck.Client.
func (p *Provider) IsHealthy(context.Context) bool {
	return true
}

func expand(entries []Entry) []navigation.Fix {
	var fixes []navigation.Fix
	for _, e := range entries {
		repeat := e.Repeat
		if repeat < 1 {
			repeat = 1
		}

		fix := navigation.Fix{Point: geo.Point{Lat: e.Lat, Lng: e.Lng}, Heading: e.Heading}
		for i := 0; i < repeat; i++ {
			fixes = append(fixes, fix)
		}
	}
	return fixes
}
