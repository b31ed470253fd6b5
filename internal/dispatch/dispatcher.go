// Package dispatch orchestrates per-event handling: it fans the event out
// across the configured parsers, merges and ranks candidates, applies skill
// constraints, and schedules skill runs.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/parser"
	"github.com/warblebot/warble/internal/skill"
)

// rankEpsilon is the float guard when selecting the top score band in
// ranked mode.
const rankEpsilon = 1e-9

// Config holds dispatcher configuration.
type Config struct {
	// Ranked runs only the top-scoring candidate band instead of every
	// candidate.
	Ranked bool

	// SkillDeadline bounds Drain's wait for in-flight skills. Default 30s.
	SkillDeadline time.Duration

	// ParseTimeout bounds the parser fan-out per event. Zero = no bound
	// beyond the parsers' own timeouts.
	ParseTimeout time.Duration
}

// Dispatcher routes events through parsers to skill runs.
type Dispatcher struct {
	cfg     Config
	table   *skill.Table
	parsers []parser.Parser // registration order is the sort tiebreak
	runner  *Runner
	metrics *metrics.Metrics
	logger  zerolog.Logger
	wg      sync.WaitGroup // in-flight skill runs
}

// New creates a Dispatcher over the given skill table.
func New(cfg Config, table *skill.Table, runner *Runner, m *metrics.Metrics, logger zerolog.Logger) *Dispatcher {
	if cfg.SkillDeadline == 0 {
		cfg.SkillDeadline = 30 * time.Second
	}
	return &Dispatcher{
		cfg:     cfg,
		table:   table,
		runner:  runner,
		metrics: m,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// AddParser registers a parser. Registration order is part of the candidate
// ordering contract; call before the first Parse.
func (d *Dispatcher) AddParser(p parser.Parser) {
	d.parsers = append(d.parsers, p)
}

// Parsers returns the registered parser names in order.
func (d *Dispatcher) Parsers() []string {
	names := make([]string, len(d.parsers))
	for i, p := range d.parsers {
		names[i] = p.Name()
	}
	return names
}

// Parse runs every parser on the event, ranks the surviving candidates, and
// schedules a skill run per survivor. It returns the scheduling handles
// without awaiting them. A given (event, skill) pair is scheduled at most
// once per call.
func (d *Dispatcher) Parse(ctx context.Context, ev event.Event) []*Task {
	meta := ev.Meta()
	connName := "internal"
	if meta.Connector != nil {
		connName = meta.Connector.Name()
	}
	d.metrics.RecordEvent(connName, ev.Kind())

	// Never re-enter on our own traffic.
	if d.isEcho(meta) {
		d.logger.Debug().Str("event_id", meta.EventID).Msg("dropping own event")
		return nil
	}

	merged := d.runParsers(ctx, ev)

	// Constraints drop candidates before ranking.
	kept := merged[:0]
	for _, c := range merged {
		if c.cand.Skill.Allowed(ev) {
			kept = append(kept, c)
		}
	}

	// Stable by score descending; stability preserves parser registration
	// order, then per-parser emission order, as the tiebreak.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].cand.Score > kept[j].cand.Score
	})

	if d.cfg.Ranked && len(kept) > 0 {
		best := kept[0].cand.Score
		cut := len(kept)
		for i, c := range kept {
			if best-c.cand.Score > rankEpsilon {
				cut = i
				break
			}
		}
		kept = kept[:cut]
	}

	// At most one run per skill for this event; the first (highest ranked)
	// candidate wins.
	seen := make(map[*skill.Skill]bool, len(kept))
	var tasks []*Task
	for _, c := range kept {
		if seen[c.cand.Skill] {
			continue
		}
		seen[c.cand.Skill] = true
		tasks = append(tasks, d.schedule(ctx, c.cand))
	}
	return tasks
}

type ordered struct {
	cand parser.Candidate
	pidx int
}

// runParsers fans the event out across all parsers concurrently and merges
// their candidates in registration order. A parser failure never prevents
// other parsers from contributing.
func (d *Dispatcher) runParsers(ctx context.Context, ev event.Event) []ordered {
	if d.cfg.ParseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ParseTimeout)
		defer cancel()
	}

	results := make([][]parser.Candidate, len(d.parsers))
	var wg sync.WaitGroup
	for i, p := range d.parsers {
		wg.Add(1)
		go func(i int, p parser.Parser) {
			defer wg.Done()
			cands, err := d.safeParse(ctx, p, ev)
			if err != nil {
				d.metrics.RecordParserError(p.Name())
				d.logger.Warn().Err(err).Str("parser", p.Name()).Msg("parser failed")
				return
			}
			results[i] = cands
			d.metrics.RecordCandidates(p.Name(), len(cands))
		}(i, p)
	}
	wg.Wait()

	var merged []ordered
	for i, cands := range results {
		for _, c := range cands {
			merged = append(merged, ordered{cand: c, pidx: i})
		}
	}
	return merged
}

func (d *Dispatcher) safeParse(ctx context.Context, p parser.Parser, ev event.Event) (cands []parser.Candidate, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cands, err = nil, fmt.Errorf("parser panic: %v", rec)
		}
	}()
	return p.Parse(ctx, ev, d.table)
}

func (d *Dispatcher) schedule(ctx context.Context, c parser.Candidate) *Task {
	t := newTask(c.Skill.Name)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		t.err = d.runner.Run(ctx, c)
		close(t.done)
	}()
	return t
}

func (d *Dispatcher) isEcho(meta *event.Metadata) bool {
	if meta.Connector == nil || meta.UserID == "" {
		return false
	}
	id, ok := meta.Connector.(event.Identified)
	return ok && id.Identity() != "" && id.Identity() == meta.UserID
}

// Drain waits for in-flight skill runs, bounded by the skill deadline.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(d.cfg.SkillDeadline):
		return fmt.Errorf("drain: skills still running after %s", d.cfg.SkillDeadline)
	case <-ctx.Done():
		return ctx.Err()
	}
}
