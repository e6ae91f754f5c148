// Package directions retrieves walking routes from the Google Directions API.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wayfind/wayfind/internal/geo"
	"github.com/wayfind/wayfind/internal/metrics"
)

// DefaultBaseURL is the Google Maps API host.
const DefaultBaseURL = "https://maps.googleapis.com"

const routePath = "/maps/api/directions/json"

// ErrNoRoute indicates the API found no route between the origin and the
// destination.
var ErrNoRoute = errors.New("no route found")

// StatusError is returned when the Directions API answers with a status
// other than OK.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("directions api status: %s", e.Status)
	}
	return fmt.Sprintf("directions api status: %s: %s", e.Status, e.Message)
}

// Client is a Google Directions API client fixed to walking mode.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Google Maps API host, primarily for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a Client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Route requests a walking route from origin to destination. destination is a
// free-form address. ZERO_RESULTS maps to ErrNoRoute; any other non-OK status
// maps to a StatusError.
func (c *Client) Route(ctx context.Context, origin geo.Point, destination string) (*Route, error) {
	params := url.Values{}
	params.Set("origin", origin.String())
	params.Set("destination", destination)
	params.Set("mode", "walking")
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+routePath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := c.http.Do(req)
	if err != nil {
		metrics.DirectionsRequests.WithLabelValues("unreachable").Inc()
		return nil, fmt.Errorf("directions request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		metrics.DirectionsRequests.WithLabelValues(fmt.Sprintf("http_%d", res.StatusCode)).Inc()
		return nil, fmt.Errorf("directions request: HTTP %d", res.StatusCode)
	}

	var body payload
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		metrics.DirectionsRequests.WithLabelValues("undecodable").Inc()
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	metrics.DirectionsRequests.WithLabelValues(body.Status).Inc()

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoRoute
	default:
		return nil, &StatusError{Status: body.Status, Message: body.ErrorMessage}
	}

	if len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	return toRoute(destination, body.Routes[0].Legs[0]), nil
}

type payload struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []leg `json:"legs"`
	} `json:"routes"`
}

type leg struct {
	Distance Quantity `json:"distance"`
	Duration Quantity `json:"duration"`
	Steps    []struct {
		HTMLInstructions string   `json:"html_instructions"`
		Distance         Quantity `json:"distance"`
		Duration         Quantity `json:"duration"`
		StartLocation    latlng   `json:"start_location"`
		EndLocation      latlng   `json:"end_location"`
		Maneuver         string   `json:"maneuver"`
	} `json:"steps"`
}

type latlng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toRoute(destination string, l leg) *Route {
	route := &Route{
		Destination: destination,
		Distance:    l.Distance,
		Duration:    l.Duration,
		Steps:       make([]Step, 0, len(l.Steps)),
	}

	for _, s := range l.Steps {
		route.Steps = append(route.Steps, Step{
			Instruction: stripMarkup(s.HTMLInstructions),
			Distance:    s.Distance,
			Duration:    s.Duration,
			Start:       geo.Point{Lat: s.StartLocation.Lat, Lng: s.StartLocation.Lng},
			End:         geo.Point{Lat: s.EndLocation.Lat, Lng: s.EndLocation.Lng},
			Maneuver:    s.Maneuver,
		})
	}

	return route
}

// stripMarkup flattens the html_instructions field into plain text. The API
// uses <div> elements as instruction separators with no whitespace around
// them, so they become spaces rather than disappearing.
func stripMarkup(s string) string {
	s = strings.ReplaceAll(s, "<div", " <div")

	var b strings.Builder
	var inTag bool
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
