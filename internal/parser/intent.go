package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/errors"
	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/retry"
	"github.com/warblebot/warble/internal/skill"
)

// IntentConfig configures an HTTP intent parser.
type IntentConfig struct {
	// Endpoint is the vendor's parse URL. Empty disables the parser.
	Endpoint string

	// Token is sent as a bearer token when set.
	Token string

	// MinScore rejects intents whose confidence is strictly below it.
	// Equality is accepted.
	MinScore float64

	// Timeout bounds each vendor call. Default 10s.
	Timeout time.Duration
}

// IntentParser classifies message text through an HTTP NLU endpoint and
// proposes skills whose intent matchers name a returned intent. It issues
// at most one vendor call per event; extracted entities are attached to the
// event in a single step after a successful call.
type IntentParser struct {
	name     string
	cfg      IntentConfig
	client   *http.Client
	retryCfg retry.Config
	logger   zerolog.Logger
	disabled atomic.Bool // flipped on auth failure, stays off for the run
}

// NewIntentParser creates an intent parser with the given instance name
// (the key under `parsers:` in the configuration).
func NewIntentParser(name string, cfg IntentConfig, logger zerolog.Logger) *IntentParser {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	rc := retry.DefaultConfig()
	rc.AttemptTimeout = cfg.Timeout
	return &IntentParser{
		name:     name,
		cfg:      cfg,
		client:   &http.Client{},
		retryCfg: rc,
		logger:   logger.With().Str("component", "parser").Str("parser", name).Logger(),
	}
}

func (p *IntentParser) Name() string { return p.name }

func (p *IntentParser) Parse(ctx context.Context, ev event.Event, table *skill.Table) ([]Candidate, error) {
	if p.disabled.Load() || p.cfg.Endpoint == "" {
		return nil, nil
	}
	text, ok := messageText(ev, table)
	if !ok || text == "" {
		return nil, nil
	}

	// Collect intent matchers first so events nobody listens for cost no
	// vendor call.
	type binding struct {
		s *skill.Skill
		m *skill.Intent
	}
	var bindings []binding
	for _, s := range table.Skills() {
		for _, m := range s.Matchers {
			if im, ok := m.(*skill.Intent); ok {
				bindings = append(bindings, binding{s, im})
			}
		}
	}
	if len(bindings) == 0 {
		return nil, nil
	}

	resp, err := p.classify(ctx, text)
	if err != nil {
		if errors.IsAuth(err) {
			p.disabled.Store(true)
			p.logger.Error().Err(err).Msg("credentials rejected, parser disabled for this run")
		}
		return nil, err
	}

	if ents := resp.entityMap(); len(ents) > 0 {
		ev.Meta().AddEntities(ents)
	}

	confidence := make(map[string]float64, len(resp.Intents))
	for _, in := range resp.Intents {
		if cur, ok := confidence[in.Name]; !ok || in.Confidence > cur {
			confidence[in.Name] = in.Confidence
		}
	}

	var out []Candidate
	for _, b := range bindings {
		score, ok := confidence[b.m.Name]
		if !ok {
			continue
		}
		threshold := p.cfg.MinScore
		if b.m.MinScore > 0 {
			threshold = b.m.MinScore
		}
		if score < threshold {
			continue
		}
		out = append(out, Candidate{Skill: b.s, Matcher: b.m, Score: score, Event: ev})
	}
	return out, nil
}

// ---- vendor wire types ----

type intentResult struct {
	Intents []struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"intents"`
	Entities []struct {
		Name       string  `json:"name"`
		Value      any     `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

func (r *intentResult) entityMap() map[string]event.Entity {
	if len(r.Entities) == 0 {
		return nil
	}
	out := make(map[string]event.Entity, len(r.Entities))
	for _, e := range r.Entities {
		if cur, ok := out[e.Name]; ok && cur.Confidence >= e.Confidence {
			continue
		}
		out[e.Name] = event.Entity{Value: e.Value, Confidence: e.Confidence}
	}
	return out
}

func (p *IntentParser) classify(ctx context.Context, text string) (*intentResult, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	var result intentResult
	err = retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if p.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return errors.NewTransportError(p.name, 0, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &errors.AuthError{Service: p.name, Message: resp.Status}
		case resp.StatusCode != http.StatusOK:
			return errors.NewTransportError(p.name, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.NewTransportError(p.name, 0, err)
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return errors.NewTransportError(p.name, 0, fmt.Errorf("unmarshal: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
