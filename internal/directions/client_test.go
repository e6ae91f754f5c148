package directions

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wayfind/wayfind/internal/geo"
)

const walkingRouteJSON = `{
	"status": "OK",
	"routes": [{
		"legs": [{
			"distance": {"text": "0.4 mi", "value": 650},
			"duration": {"text": "9 mins", "value": 540},
			"steps": [
				{
					"html_instructions": "Head <b>north</b> on <b>Shoreline Blvd</b>",
					"distance": {"text": "0.2 mi", "value": 300},
					"duration": {"text": "4 mins", "value": 240},
					"start_location": {"lat": 37.4027, "lng": -122.0777},
					"end_location": {"lat": 37.4055, "lng": -122.0776}
				},
				{
					"html_instructions": "Turn <b>right</b> onto <b>Villa St</b><div style=\"font-size:0.9em\">Destination will be on the left</div>",
					"distance": {"text": "0.2 mi", "value": 350},
					"duration": {"text": "5 mins", "value": 300},
					"start_location": {"lat": 37.4055, "lng": -122.0776},
					"end_location": {"lat": 37.4058, "lng": -122.0737},
					"maneuver": "turn-right"
				}
			]
		}]
	}]
}`

func TestRoute(t *testing.T) {
	origin := geo.Point{Lat: 37.4027, Lng: -122.0777}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routePath {
			t.Errorf("unexpected path: got %v want %v", r.URL.Path, routePath)
		}

		query := r.URL.Query()
		if got := query.Get("origin"); got != origin.String() {
			t.Errorf("unexpected origin: got %v want %v", got, origin.String())
		}
		if got := query.Get("mode"); got != "walking" {
			t.Errorf("unexpected mode: got %v want walking", got)
		}
		if got := query.Get("key"); got != "test-key" {
			t.Errorf("unexpected key: got %v want test-key", got)
		}

		_, _ = w.Write([]byte(walkingRouteJSON))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	route, err := client.Route(context.Background(), origin, "Villa St, Mountain View")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if route.Destination != "Villa St, Mountain View" {
		t.Errorf("unexpected destination: got %v", route.Destination)
	}
	if route.Distance.Value != 650 {
		t.Errorf("unexpected distance: got %v want 650", route.Distance.Value)
	}

	wantSteps := []Step{
		{
			Instruction: "Head north on Shoreline Blvd",
			Distance:    Quantity{Text: "0.2 mi", Value: 300},
			Duration:    Quantity{Text: "4 mins", Value: 240},
			Start:       geo.Point{Lat: 37.4027, Lng: -122.0777},
			End:         geo.Point{Lat: 37.4055, Lng: -122.0776},
		},
		{
			Instruction: "Turn right onto Villa St Destination will be on the left",
			Distance:    Quantity{Text: "0.2 mi", Value: 350},
			Duration:    Quantity{Text: "5 mins", Value: 300},
			Start:       geo.Point{Lat: 37.4055, Lng: -122.0776},
			End:         geo.Point{Lat: 37.4058, Lng: -122.0737},
			Maneuver:    "turn-right",
		},
	}

	if diff := cmp.Diff(wantSteps, route.Steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
}

func TestRouteErrors(t *testing.T) {
	cases := []struct {
		Name     string
		Status   int
		Body     string
		Validate func(*testing.T, error)
	}{
		{
			Name:   "ZeroResults",
			Status: http.StatusOK,
			Body:   `{"status": "ZERO_RESULTS", "routes": []}`,
			Validate: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoRoute) {
					t.Fatalf("expected ErrNoRoute, got %v", err)
				}
			},
		},
		{
			Name:   "RequestDenied",
			Status: http.StatusOK,
			Body:   `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid.", "routes": []}`,
			Validate: func(t *testing.T, err error) {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("expected StatusError, got %v", err)
				}
				if statusErr.Status != "REQUEST_DENIED" {
					t.Fatalf("unexpected status: got %v", statusErr.Status)
				}
				if statusErr.Message != "The provided API key is invalid." {
					t.Fatalf("unexpected message: got %v", statusErr.Message)
				}
			},
		},
		{
			Name:   "NoLegs",
			Status: http.StatusOK,
			Body:   `{"status": "OK", "routes": []}`,
			Validate: func(t *testing.T, err error) {
				if !errors.Is(err, ErrNoRoute) {
					t.Fatalf("expected ErrNoRoute, got %v", err)
				}
			},
		},
		{
			Name:   "HTTPError",
			Status: http.StatusBadGateway,
			Body:   "",
			Validate: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
			},
		},
		{
			Name:   "Undecodable",
			Status: http.StatusOK,
			Body:   "not json",
			Validate: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.Status)
				_, _ = w.Write([]byte(tc.Body))
			}))
			defer server.Close()

			client := NewClient("test-key", WithBaseURL(server.URL))

			_, err := client.Route(context.Background(), geo.Point{}, "nowhere")
			tc.Validate(t, err)
		})
	}
}

func TestStripMarkup(t *testing.T) {
	cases := []struct {
		Name   string
		In     string
		Expect string
	}{
		{
			Name:   "PlainText",
			In:     "Head north",
			Expect: "Head north",
		},
		{
			Name:   "BoldTags",
			In:     "Turn <b>left</b> onto <b>Castro St</b>",
			Expect: "Turn left onto Castro St",
		},
		{
			Name:   "DivSeparator",
			In:     `Continue onto <b>Church St</b><div style="font-size:0.9em">Destination will be on the right</div>`,
			Expect: "Continue onto Church St Destination will be on the right",
		},
		{
			Name:   "Entities",
			In:     "Turn right at Powell &amp; Market",
			Expect: "Turn right at Powell & Market",
		},
		{
			Name:   "Empty",
			In:     "",
			Expect: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			if got := stripMarkup(tc.In); got != tc.Expect {
				t.Fatalf("stripMarkup(%q) = %q, want %q", tc.In, got, tc.Expect)
			}
		})
	}
}

func TestRewriteTurns(t *testing.T) {
	cases := []struct {
		Name    string
		Heading float64
		In      string
		Expect  string
	}{
		{
			Name:    "EastFacingNorth",
			Heading: 0,
			In:      "Head east on Main St",
			Expect:  "Head right on Main St",
		},
		{
			Name:    "WestFacingNorth",
			Heading: 0,
			In:      "Head west on Main St",
			Expect:  "Head left on Main St",
		},
		{
			Name:    "CompoundBeforeSimple",
			Heading: 270,
			In:      "Continue northeast toward the park",
			Expect:  "Continue right toward the park",
		},
		{
			Name:    "NoCardinal",
			Heading: 90,
			In:      "Continue straight",
			Expect:  "Continue straight",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			steps := []Step{{Instruction: tc.In}}
			rewritten := RewriteTurns(steps, tc.Heading)

			if got := rewritten[0].Instruction; got != tc.Expect {
				t.Fatalf("RewriteTurns rewrote to %q, want %q", got, tc.Expect)
			}
			if steps[0].Instruction != tc.In {
				t.Fatalf("RewriteTurns mutated its input: %q", steps[0].Instruction)
			}
		})
	}
}
