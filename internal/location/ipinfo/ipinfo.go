// Package ipinfo geolocates the host by its public IP using the ipinfo.io
// service. It is the coarsest provider, useful on machines without a GPS.
package ipinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wayfind/wayfind/internal/geo"
	"github.com/wayfind/wayfind/internal/navigation"
)

// DefaultURL is the public ipinfo.io endpoint.
const DefaultURL = "https://ipinfo.io"

// Options configures a Provider.
type Options struct {
	// URL of the geolocation service; defaults to DefaultURL.
	URL string

	// HTTPClient overrides the underlying HTTP client.
	HTTPClient *http.Client
}

// Provider resolves the current location from the host's public IP.
type Provider struct {
	url  string
	http *http.Client
}

// New returns a new instance of Provider.
func New(opts Options) *Provider {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{url: opts.URL, http: opts.HTTPClient}
}

// CurrentFix satisfies navigation.Provider. The returned fix never carries a
// heading.
func (p *Provider) CurrentFix(ctx context.Context) (navigation.Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return navigation.Fix{}, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := p.http.Do(req)
	if err != nil {
		return navigation.Fix{}, fmt.Errorf("geolocation request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return navigation.Fix{}, fmt.Errorf("geolocation request: HTTP %d", res.StatusCode)
	}

	var body struct {
		Loc string `json:"loc"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return navigation.Fix{}, fmt.Errorf("decode geolocation response: %w", err)
	}

	point, err := geo.ParsePoint(body.Loc)
	if err != nil {
		return navigation.Fix{}, fmt.Errorf("geolocation response: %w", err)
	}

	return navigation.Fix{Point: point, Time: time.Now()}, nil
}

// IsHealthy satisfies healthcheck.Client by probing the geolocation service.
func (p *Provider) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.CurrentFix(ctx)
	return err == nil
}
