// Package query is the HTTP frontend for natural-language questions about
// the walker's surroundings.
package query

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/packethost/pkg/log"

	"github.com/wayfind/wayfind/internal/assistant"
	"github.com/wayfind/wayfind/internal/http/httperror"
	"github.com/wayfind/wayfind/internal/navigation"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// obstacleWindow bounds how far back reports are considered relevant to a
// question asked right now.
const obstacleWindow = 2 * time.Minute

// Assist answers questions given navigation context. *assistant.Assistant
// satisfies it.
type Assist interface {
	Answer(ctx context.Context, question string, c assistant.Context) (string, error)
}

// SessionSource resolves session IDs to snapshots. *navigation.Engine
// satisfies it.
type SessionSource interface {
	Get(id string) (navigation.Snapshot, error)
}

// Frontend is the query HTTP API frontend.
type Frontend struct {
	log      log.Logger
	assist   Assist
	sessions SessionSource
	reports  *obstacle.Log
}

// New creates a new Frontend. assist may be nil when no language model is
// configured; the endpoint then answers 503.
func New(logger log.Logger, assist Assist, sessions SessionSource, reports *obstacle.Log) Frontend {
	return Frontend{
		log:      logger,
		assist:   assist,
		sessions: sessions,
		reports:  reports,
	}
}

// Configure configures router with the query endpoint.
func (f Frontend) Configure(router *gin.Engine) {
	router.POST("/v1/query", f.query)
}

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

func (f Frontend) query(ctx *gin.Context) {
	if f.assist == nil {
		abortWithError(ctx, httperror.New(http.StatusServiceUnavailable, "no language model is configured"))
		return
	}

	var req queryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "invalid request body"))
		return
	}

	if req.Question == "" {
		abortWithError(ctx, httperror.New(http.StatusBadRequest, "question is required"))
		return
	}

	var c assistant.Context

	if req.SessionID != "" {
		snap, err := f.sessions.Get(req.SessionID)
		if err != nil {
			if errors.Is(err, navigation.ErrSessionNotFound) {
				abortWithError(ctx, httperror.New(http.StatusNotFound, "session not found"))
				return
			}
			abortWithError(ctx, err)
			return
		}
		c.Session = &snap
	}

	if f.reports != nil {
		c.Obstacles = f.reports.Recent(obstacleWindow)
	}

	answer, err := f.assist.Answer(ctx, req.Question, c)
	if err != nil {
		// ErrNoAnswer and transport failures alike are the model's fault.
		abortWithError(ctx, httperror.Wrap(http.StatusBadGateway, err))
		return
	}

	ctx.JSON(http.StatusOK, queryResponse{Answer: answer})
}

func abortWithError(ctx *gin.Context, err error) {
	var httpErr *httperror.E
	if errors.As(err, &httpErr) {
		ctx.AbortWithStatusJSON(httpErr.StatusCode, gin.H{"error": httpErr.Error()})
		return
	}

	ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
