// Package location selects and constructs the server's location provider.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/wayfind/wayfind/internal/healthcheck"
	"github.com/wayfind/wayfind/internal/location/ipinfo"
	"github.com/wayfind/wayfind/internal/location/push"
	"github.com/wayfind/wayfind/internal/location/tracefile"
	"github.com/wayfind/wayfind/internal/navigation"
)

// ErrMissingProviderConfig indicates New was called without a provider configuration.
var ErrMissingProviderConfig = errors.New("no location provider configuration specified in options")

// ErrMultipleProviders indicates the provider Options contains more than one provider configuration.
var ErrMultipleProviders = errors.New("only one location provider option can be specified")

// Client is an abstraction for all location providers. Each provider
// implementation should satisfy this interface.
type Client interface {
	navigation.Provider
	healthcheck.Client
}

// Options contains all options for all provider implementations. Only one
// provider option can be specified at a time.
type Options struct {
	IPInfo    *IPInfo
	Tracefile *Tracefile
	Push      *Push
}

// IPInfo is the configuration for an IP geolocation provider.
type IPInfo struct {
	// URL of the geolocation service; defaults to https://ipinfo.io.
	URL string
}

// Tracefile is the configuration for a recorded-track provider.
type Tracefile struct {
	// Path is a path to a YAML file containing a list of recorded fixes.
	Path string

	// Loop restarts the track once exhausted instead of holding the last fix.
	Loop bool
}

// Push is the configuration for a device-push provider.
type Push struct {
	// StaleAfter is how old the latest fix may be before the provider
	// reports unhealthy.
	StaleAfter time.Duration
}

func (o Options) validate() error {
	var count int

	if o.IPInfo != nil {
		count++
	}

	if o.Tracefile != nil {
		count++
	}

	if o.Push != nil {
		count++
	}

	if count > 1 {
		return ErrMultipleProviders
	}

	return nil
}

// New creates a location provider for the configuration specified by opts.
// Consumers may only supply 1 provider configuration. If no provider
// configuration is supplied, it returns ErrMissingProviderConfig.
func New(_ context.Context, opts Options) (Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	switch {
	case opts.IPInfo != nil:
		return ipinfo.New(ipinfo.Options{URL: opts.IPInfo.URL}), nil

	case opts.Tracefile != nil:
		return tracefile.FromYAMLFile(opts.Tracefile.Path, opts.Tracefile.Loop)

	case opts.Push != nil:
		return push.New(opts.Push.StaleAfter), nil

	default:
		return nil, ErrMissingProviderConfig
	}
}
