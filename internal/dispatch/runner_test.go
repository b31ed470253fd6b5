package dispatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/parser"
	"github.com/warblebot/warble/internal/skill"
)

func candidate(s *skill.Skill, ev event.Event) parser.Candidate {
	return parser.Candidate{Skill: s, Score: 1.0, Event: ev}
}

func TestRunner_Success(t *testing.T) {
	r := NewRunner(metrics.New(), zerolog.Nop())
	s := skill.New("ok", func(context.Context, event.Event) error { return nil })

	err := r.Run(context.Background(), candidate(s, event.NewMessage("hi")))
	assert.NoError(t, err)
}

func TestRunner_HandlerErrorWrapped(t *testing.T) {
	r := NewRunner(metrics.New(), zerolog.Nop())
	s := skill.New("broken", func(context.Context, event.Event) error {
		return fmt.Errorf("no database")
	})

	err := r.Run(context.Background(), candidate(s, event.NewMessage("hi")))
	require.Error(t, err)
	var serr *errors.SkillError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "broken", serr.Skill)
}

func TestRunner_PanicRecovered(t *testing.T) {
	r := NewRunner(metrics.New(), zerolog.Nop())
	s := skill.New("bomb", func(context.Context, event.Event) error {
		panic("kaboom")
	})

	err := r.Run(context.Background(), candidate(s, event.NewMessage("hi")))
	require.Error(t, err)
	var serr *errors.SkillError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "kaboom")
}

func TestRunner_CancelledContext(t *testing.T) {
	r := NewRunner(metrics.New(), zerolog.Nop())
	s := skill.New("waits", func(ctx context.Context, _ event.Event) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, candidate(s, event.NewMessage("hi")))
	assert.Error(t, err)
}

func TestRunner_FailureDoesNotStopOthers(t *testing.T) {
	r := NewRunner(metrics.New(), zerolog.Nop())
	ev := event.NewMessage("hi")

	bad := skill.New("bad", func(context.Context, event.Event) error { panic("x") })
	good := skill.New("good", func(context.Context, event.Event) error { return nil })

	assert.Error(t, r.Run(context.Background(), candidate(bad, ev)))
	assert.NoError(t, r.Run(context.Background(), candidate(good, ev)))
}
