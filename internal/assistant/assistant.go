// Package assistant answers natural-language questions about the walker's
// surroundings using a language model grounded in navigation context.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"

	"github.com/wayfind/wayfind/internal/llm"
	"github.com/wayfind/wayfind/internal/navigation"
	"github.com/wayfind/wayfind/internal/obstacle"
)

// ErrNoAnswer indicates the language model returned an empty choice list.
var ErrNoAnswer = errors.New("language model returned no choices")

// Context is the navigation state an answer should be grounded in. Every
// field is optional.
type Context struct {
	Session   *navigation.Snapshot
	Obstacles []obstacle.Report
}

// Assistant turns questions plus navigation context into spoken-style
// answers.
type Assistant struct {
	log    log.Logger
	client llm.Client
	model  string
}

// New creates an Assistant backed by client. model is passed through to the
// chat API.
func New(logger log.Logger, client llm.Client, model string) *Assistant {
	return &Assistant{
		log:    logger,
		client: client,
		model:  model,
	}
}

// Answer asks the model question with c folded into the system prompt and
// returns the first choice's content.
func (a *Assistant) Answer(ctx context.Context, question string, c Context) (string, error) {
	req := llm.Request{
		Model:       a.model,
		Temperature: 0.2,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt(c)},
			{Role: "user", Content: question},
		},
	}

	res, err := a.client.Chat(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "assistant query")
	}

	if len(res.Choices) == 0 {
		return "", ErrNoAnswer
	}

	answer := strings.TrimSpace(res.Choices[0].Message.Content)

	a.log.With("tokens", res.Usage.TotalTokens).Debug("assistant answered")

	return answer, nil
}

// systemPrompt renders c as instructions for the model. Answers are meant to
// be read aloud to a walking user, so the prompt insists on brevity.
func systemPrompt(c Context) string {
	var b strings.Builder

	b.WriteString("You are a navigation assistant for a pedestrian. ")
	b.WriteString("Answer in one or two short sentences suitable for text-to-speech. ")
	b.WriteString("Use the situation below when it is relevant to the question.\n")

	if s := c.Session; s != nil {
		fmt.Fprintf(&b, "\nThe user is walking to %s (session state: %s).\n", s.Destination, s.State)

		if s.Step != nil {
			fmt.Fprintf(&b, "Current instruction: %s (%s).\n", s.Step.Instruction, s.Step.Distance.Text)
		}

		if s.Route != nil {
			remaining := len(s.Route.Steps) - s.StepIndex
			if remaining > 0 {
				fmt.Fprintf(&b, "%d of %d route steps remain.\n", remaining, len(s.Route.Steps))
			}
		}

		if s.LastFix != nil {
			fmt.Fprintf(&b, "Last known position: %s.\n", s.LastFix.Point)
		}
	}

	if len(c.Obstacles) > 0 {
		b.WriteString("\nRecently detected obstacles, newest first:\n")
		for _, r := range c.Obstacles {
			fmt.Fprintf(&b, "- %s", r.Label)
			if r.DistanceMeters > 0 {
				fmt.Fprintf(&b, " about %.0f meters away", r.DistanceMeters)
			}
			if r.Bearing != "" {
				fmt.Fprintf(&b, " to the %s", r.Bearing)
			}
			fmt.Fprintf(&b, " (confidence %.2f)\n", r.Confidence)
		}
	}

	return b.String()
}
