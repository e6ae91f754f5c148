// Package nav is the HTTP API frontend for navigation sessions, location
// pushes and obstacle reports.
package nav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/packethost/pkg/log"

	"github.com/wayfind/wayfind/internal/directions"
	"github.com/wayfind/wayfind/internal/geo"
	"github.com/wayfind/wayfind/internal/http/httperror"
	"github.com/wayfind/wayfind/internal/http/request"
	"github.com/wayfind/wayfind/internal/navigation"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// Engine is the session engine the frontend drives. *navigation.Engine
// satisfies it.
type Engine interface {
	Start(ctx context.Context, destination string) (navigation.Snapshot, error)
	Get(id string) (navigation.Snapshot, error)
	List() []navigation.Snapshot
	End(id string) error
	Subscribe(sessionID string) (*navigation.Subscription, error)
	Unsubscribe(sub *navigation.Subscription)
	NotifyObstacle(sessionID string, report obstacle.Report) error
}

// Feed accepts location fixes pushed by a device. *push.Provider satisfies
// it.
type Feed interface {
	Set(fix navigation.Fix)
}

// Options configures optional frontend behavior.
type Options struct {
	// Feed receives pushed location fixes. When nil the location endpoint
	// answers 409.
	Feed Feed

	// Reports receives obstacle reports. When nil a default log is created.
	Reports *obstacle.Log

	// MetaEndpoints maps endpoint suffixes to gojq filters evaluated against
	// the session document, for example {"/instruction": ".step.instruction"}.
	MetaEndpoints map[string]string
}

// Frontend is the navigation HTTP API frontend. It is responsible for
// configuring routers with handlers for session management.
type Frontend struct {
	log     log.Logger
	engine  Engine
	feed    Feed
	reports *obstacle.Log
	meta    map[string]string
}

// New creates a new Frontend.
func New(logger log.Logger, engine Engine, opts Options) Frontend {
	if opts.Reports == nil {
		opts.Reports = obstacle.NewLog(0)
	}

	return Frontend{
		log:     logger,
		engine:  engine,
		feed:    opts.Feed,
		reports: opts.Reports,
		meta:    opts.MetaEndpoints,
	}
}

// Reports exposes the frontend's obstacle log so the assistant can read it.
func (f Frontend) Reports() *obstacle.Log {
	return f.reports
}

// Configure configures router with the navigation API endpoints.
func (f Frontend) Configure(router *gin.Engine) {
	v1 := router.Group("/v1")

	v1.POST("/sessions", f.createSession)
	v1.GET("/sessions", f.listSessions)
	v1.GET("/sessions/:id", f.getSession)
	v1.DELETE("/sessions/:id", f.endSession)
	v1.GET("/sessions/:id/steps", f.getSteps)
	v1.GET("/sessions/:id/events", f.streamEvents)

	f.configureMeta(v1.Group("/sessions/:id/meta"))

	v1.POST("/location", f.pushLocation)

	v1.POST("/obstacles", f.createObstacle)
	v1.GET("/obstacles", f.listObstacles)
}

type createSessionRequest struct {
	Destination string `json:"destination"`
}

func (f Frontend) createSession(ctx *gin.Context) {
	var req createSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "invalid request body"))
		return
	}

	if req.Destination == "" {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "destination is required"))
		return
	}

	if ip, err := request.RemoteAddrIP(ctx.Request); err == nil {
		f.log.With("client", ip, "destination", req.Destination).Info("session requested")
	}

	snap, err := f.engine.Start(ctx, req.Destination)
	if err != nil {
		abortWithError(ctx, toSessionStartError(err))
		return
	}

	ctx.JSON(http.StatusCreated, snap)
}

// toSessionStartError maps planning failures onto response codes: an
// unroutable destination is the caller's problem, an upstream refusal is a
// bad gateway.
func toSessionStartError(err error) error {
	switch {
	case errors.Is(err, directions.ErrNoRoute):
		return httperror.Wrap(http.StatusNotFound, err)
	default:
		var statusErr *directions.StatusError
		if errors.As(err, &statusErr) {
			return httperror.Wrap(http.StatusBadGateway, err)
		}
		return err
	}
}

func (f Frontend) listSessions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"sessions": f.engine.List()})
}

func (f Frontend) getSession(ctx *gin.Context) {
	snap, err := f.lookup(ctx)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, snap)
}

func (f Frontend) endSession(ctx *gin.Context) {
	if err := f.engine.End(ctx.Param("id")); err != nil {
		if errors.Is(err, navigation.ErrSessionNotFound) {
			abortWithError(ctx, httperror.New(http.StatusNotFound, "session not found"))
			return
		}
		abortWithError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (f Frontend) getSteps(ctx *gin.Context) {
	snap, err := f.lookup(ctx)
	if err != nil {
		abortWithError(ctx, err)
		return
	}

	var steps []directions.Step
	if snap.Route != nil {
		steps = snap.Route.Steps
	}

	ctx.JSON(http.StatusOK, gin.H{"steps": steps})
}

func (f Frontend) streamEvents(ctx *gin.Context) {
	sub, err := f.engine.Subscribe(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, navigation.ErrSessionNotFound) {
			abortWithError(ctx, httperror.New(http.StatusNotFound, "session not found"))
			return
		}
		abortWithError(ctx, err)
		return
	}
	defer f.engine.Unsubscribe(sub)

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	// An idle session may not produce an event for a while; send the headers
	// now so subscribers see the stream open immediately.
	ctx.Writer.Flush()

	ctx.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			ctx.SSEvent(ev.Type, ev)
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}

type pushLocationRequest struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Heading *float64 `json:"heading"`
}

func (f Frontend) pushLocation(ctx *gin.Context) {
	if f.feed == nil {
		abortWithError(ctx, httperror.New(http.StatusConflict, "server is not using the push location provider"))
		return
	}

	var req pushLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "invalid request body"))
		return
	}

	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "coordinates out of range"))
		return
	}

	fix := navigation.Fix{
		Point: geo.Point{Lat: req.Lat, Lng: req.Lng},
		Time:  time.Now(),
	}
	if req.Heading != nil {
		heading := geo.NormalizeHeading(*req.Heading)
		fix.Heading = &heading
	}

	f.feed.Set(fix)

	ctx.Status(http.StatusNoContent)
}

type createObstacleRequest struct {
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	DistanceMeters float64 `json:"distance_m"`
	Bearing        string  `json:"bearing"`
	SessionID      string  `json:"session_id"`
}

func (f Frontend) createObstacle(ctx *gin.Context) {
	var req createObstacleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "invalid request body"))
		return
	}

	if req.Label == "" {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "label is required"))
		return
	}

	report := f.reports.Add(obstacle.Report{
		Label:          req.Label,
		Confidence:     req.Confidence,
		DistanceMeters: req.DistanceMeters,
		Bearing:        req.Bearing,
	})

	if req.SessionID != "" {
		if err := f.engine.NotifyObstacle(req.SessionID, report); err != nil {
			if errors.Is(err, navigation.ErrSessionNotFound) {
				abortWithError(ctx, httperror.New(http.StatusNotFound, "session not found"))
				return
			}
			abortWithError(ctx, err)
			return
		}
	}

	ctx.JSON(http.StatusCreated, report)
}

func (f Frontend) listObstacles(ctx *gin.Context) {
	window := ctx.Query("window")
	if window == "" {
		ctx.JSON(http.StatusOK, gin.H{"obstacles": f.reports.All()})
		return
	}

	d, err := time.ParseDuration(window)
	if err != nil || d < 0 {
		abortWithError(ctx, httperror.Newf(http.StatusBadRequest, "invalid window: %q", window))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"obstacles": f.reports.Recent(d)})
}

// lookup resolves the :id path parameter to a session snapshot.
func (f Frontend) lookup(ctx *gin.Context) (navigation.Snapshot, error) {
	snap, err := f.engine.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, navigation.ErrSessionNotFound) {
			return navigation.Snapshot{}, httperror.New(http.StatusNotFound, "session not found")
		}
		return navigation.Snapshot{}, err
	}

	return snap, nil
}

// abortWithError writes err as a JSON error response. If err carries an HTTP
// status code, that code is used, else it's an internal server error.
func abortWithError(ctx *gin.Context, err error) {
	var httpErr *httperror.E
	if errors.As(err, &httpErr) {
		ctx.AbortWithStatusJSON(httpErr.StatusCode, gin.H{"error": httpErr.Error()})
		return
	}

	ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
