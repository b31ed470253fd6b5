package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/parser"
)

// Runner invokes skill handlers and isolates their failures. Anything that
// escapes a handler, whether an error or a panic, becomes a SkillError that stops
// at the runner; other skills scheduled for the same event continue.
type Runner struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(m *metrics.Metrics, logger zerolog.Logger) *Runner {
	return &Runner{
		metrics: m,
		logger:  logger.With().Str("component", "runner").Logger(),
	}
}

// Run invokes the candidate's handler. On the event's first successful
// response it records the response count and creation-to-response latency.
func (r *Runner) Run(ctx context.Context, c parser.Candidate) error {
	meta := c.Event.Meta()
	wasResponded := meta.Responded()

	err := r.invoke(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			// Cooperative cancellation during drain is not an error.
			r.metrics.RecordSkillRun(c.Skill.Name, "cancelled")
			r.logger.Debug().Str("skill", c.Skill.Name).Msg("skill run cancelled")
			return err
		}
		r.metrics.RecordSkillRun(c.Skill.Name, "error")
		r.logger.Error().Err(err).
			Str("skill", c.Skill.Name).
			Str("event_id", meta.EventID).
			Str("kind", c.Event.Kind()).
			Msg("skill failed")
		return err
	}

	r.metrics.RecordSkillRun(c.Skill.Name, "ok")
	if !wasResponded && meta.Responded() {
		r.metrics.RecordResponse(time.Since(meta.Created))
	}
	return nil
}

func (r *Runner) invoke(ctx context.Context, c parser.Candidate) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &errors.SkillError{Skill: c.Skill.Name, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if herr := c.Skill.Handler(ctx, c.Event); herr != nil {
		return &errors.SkillError{Skill: c.Skill.Name, Err: herr}
	}
	return nil
}
