// Package bot is the supervisor: it owns the event registry, the skill
// table, the connectors, the databases, the HTTP surfaces, and the
// dispatcher, and drives them through the lifecycle
// init → loaded → connected → running → draining → stopped.
package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/admin"
	"github.com/warblebot/warble/internal/config"
	"github.com/warblebot/warble/internal/connector"
	"github.com/warblebot/warble/internal/connector/shell"
	"github.com/warblebot/warble/internal/connector/websocket"
	"github.com/warblebot/warble/internal/dispatch"
	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/httpd"
	"github.com/warblebot/warble/internal/memory"
	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/parser"
	"github.com/warblebot/warble/internal/skill"
)

const (
	eventBufferSize = 256
	connectParallel = 4
	connectTimeout  = 10 * time.Second
)

// Bot is the process-lifetime supervisor. Exactly one exists per process;
// components reach shared state through it.
type Bot struct {
	cfg    *config.Config
	logger zerolog.Logger

	registry *event.Registry
	table    *skill.Table
	metrics  *metrics.Metrics
	memory   *memory.Memory

	// rebuilt on every load
	web        *httpd.Server
	admin      *admin.Server
	dispatcher *dispatch.Dispatcher
	connectors []connector.Connector
	extra      []connector.Connector // added via AddConnector, survives reloads
	databases  []memory.Database

	mu        sync.Mutex
	available map[string]bool // connector name → connected

	state    atomic.Int32
	started  time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	reloadCh chan struct{}
}

// New creates the supervisor and registers the core event variants. The
// registry survives reloads; everything else is rebuilt per load.
func New(cfg *config.Config, logger zerolog.Logger) (*Bot, error) {
	registry := event.NewRegistry()
	if err := event.RegisterCore(registry); err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:       cfg,
		logger:    logger.With().Str("component", "bot").Logger(),
		registry:  registry,
		table:     skill.NewTable(registry),
		metrics:   metrics.New(),
		available: make(map[string]bool),
		stopCh:    make(chan struct{}),
		reloadCh:  make(chan struct{}, 1),
	}
	b.memory = memory.New(logger)
	b.state.Store(int32(StateInit))
	return b, nil
}

// Registry returns the event registry.
func (b *Bot) Registry() *event.Registry { return b.registry }

// Skills returns the skill table. Register skills before Run.
func (b *Bot) Skills() *skill.Table { return b.table }

// Memory returns the shared key/value memory.
func (b *Bot) Memory() *memory.Memory { return b.memory }

// Web returns the shared HTTP surface. Valid once the bot is loaded.
func (b *Bot) Web() *httpd.Server { return b.web }

// Dispatcher returns the event dispatcher. Valid once the bot is loaded.
func (b *Bot) Dispatcher() *dispatch.Dispatcher { return b.dispatcher }

// State returns the current lifecycle state.
func (b *Bot) State() State { return State(b.state.Load()) }

// Stop requests a drain and exit.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Reload requests a drain and re-load. The event registry is preserved.
func (b *Bot) Reload() {
	select {
	case b.reloadCh <- struct{}{}:
	default:
	}
}

// Run drives the lifecycle until Stop or cancellation. Fatal configuration
// and registry errors abort the first load; reload failures do too, since a
// half-loaded bot cannot keep running.
func (b *Bot) Run(ctx context.Context) error {
	b.started = time.Now()
	for {
		if err := b.load(); err != nil {
			b.state.Store(int32(StateStopped))
			return err
		}
		b.connect(ctx)

		reload, err := b.run(ctx)
		b.drain()
		if !reload || ctx.Err() != nil {
			b.state.Store(int32(StateStopped))
			b.logger.Info().Msg("bot stopped")
			return err
		}
		b.logger.Info().Msg("reloading")
	}
}

// load instantiates connectors, parsers, databases, and the HTTP surfaces
// from configuration. Init/Running → Loaded.
func (b *Bot) load() error {
	b.web = httpd.New(httpd.Config{
		Host:     b.cfg.Web.Host,
		Port:     b.cfg.Web.Port,
		CertFile: b.cfg.Web.SSL.Cert,
		KeyFile:  b.cfg.Web.SSL.Key,
	}, b.logger)

	runner := dispatch.NewRunner(b.metrics, b.logger)
	b.dispatcher = dispatch.New(dispatch.Config{
		Ranked:        b.cfg.Matching.Ranked,
		SkillDeadline: b.cfg.Matching.SkillDeadline,
		ParseTimeout:  b.cfg.Matching.ParseTimeout,
	}, b.table, runner, b.metrics, b.logger)

	b.dispatcher.AddParser(parser.NewRegexParser())
	b.dispatcher.AddParser(parser.NewEventParser())
	// Sorted so the registration-order tiebreak is stable across runs.
	names := make([]string, 0, len(b.cfg.Parsers))
	for name := range b.cfg.Parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pcfg := b.cfg.Parsers[name]
		if !pcfg.Enabled || pcfg.Endpoint == "" {
			continue
		}
		b.dispatcher.AddParser(parser.NewIntentParser(name, parser.IntentConfig{
			Endpoint: pcfg.Endpoint,
			Token:    pcfg.Token,
			MinScore: pcfg.MinScore,
		}, b.logger))
	}
	b.dispatcher.AddParser(parser.NewCatchallParser())

	b.connectors = b.connectors[:0]
	for name, ccfg := range b.cfg.Connectors {
		c, err := b.buildConnector(name, ccfg)
		if err != nil {
			return err
		}
		if c == nil {
			b.logger.Warn().Str("connector", name).Msg("unknown connector, skipping")
			continue
		}
		b.connectors = append(b.connectors, c)
	}
	b.connectors = append(b.connectors, b.extra...)

	b.databases = nil
	if r := b.cfg.Databases.Redis; r != nil {
		b.databases = append(b.databases, memory.NewRedis(memory.RedisConfig{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
		}, b.logger))
	}
	b.memory.SetDatabases(b.databases...)

	if b.cfg.Web.AdminPort > 0 {
		b.admin = admin.New(admin.Config{
			ListenAddr: fmt.Sprintf("%s:%d", b.cfg.Web.Host, b.cfg.Web.AdminPort),
		}, b.table, b.Status, b.metrics, b.logger)
	} else {
		b.admin = nil
	}

	// Variant registration closes once loading completes; reloads re-run
	// load() but never re-register, so freezing again is a no-op.
	b.registry.Freeze()

	b.state.Store(int32(StateLoaded))
	b.logger.Info().
		Int("connectors", len(b.connectors)).
		Int("skills", b.table.Len()).
		Int("variants", b.registry.Len()).
		Msg("bot loaded")
	return nil
}

func (b *Bot) buildConnector(name string, ccfg config.Connector) (connector.Connector, error) {
	delays := event.Delays{
		Thinking: [2]float64(ccfg.ThinkingDelay),
		Typing:   [2]float64(ccfg.TypingDelay),
	}
	switch name {
	case "shell":
		room := ccfg.DefaultTarget
		if room == "" && len(ccfg.Rooms) > 0 {
			room = ccfg.Rooms[0]
		}
		return shell.New(shell.Config{
			BotName: ccfg.BotName,
			Room:    room,
			Delays:  delays,
		}, b.registry, b.logger), nil
	case "websocket":
		return websocket.New(websocket.Config{
			BotName: ccfg.BotName,
			Delays:  delays,
		}, b.registry, b.web, b.logger), nil
	default:
		return nil, nil
	}
}

// AddConnector registers an extra connector instance ahead of Run. Mostly
// used by embedders and tests; configured connectors come from load.
func (b *Bot) AddConnector(c connector.Connector) {
	b.extra = append(b.extra, c)
}

// connect brings up databases and connectors in bounded parallel, then
// freezes the route table. Connectors that fail stay unavailable without
// aborting startup. Loaded → Connected.
func (b *Bot) connect(ctx context.Context) {
	for _, db := range b.databases {
		dbCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		if err := db.Connect(dbCtx); err != nil {
			b.logger.Error().Err(err).Str("db", db.Name()).Msg("database connect failed")
		}
		cancel()
	}

	sem := make(chan struct{}, connectParallel)
	var wg sync.WaitGroup
	for _, c := range b.connectors {
		c := c
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			cctx, cancel := context.WithTimeout(ctx, connectTimeout)
			defer cancel()
			err := c.Connect(cctx)

			b.mu.Lock()
			b.available[c.Name()] = err == nil
			b.mu.Unlock()

			if err != nil {
				b.logger.Error().Err(err).Str("connector", c.Name()).Msg("connect failed, connector unavailable")
				return
			}
			b.logger.Info().Str("connector", c.Name()).Msg("connected")
		}()
	}
	wg.Wait()

	b.web.Freeze()
	b.metrics.ConnectorsUp.Set(float64(len(b.availableConnectors())))
	b.state.Store(int32(StateConnected))
}

// run launches listen loops, the event pump, and the HTTP surfaces, then
// waits for a stop or reload trigger. Connected → Running.
func (b *Bot) run(ctx context.Context) (reload bool, err error) {
	listenCtx, cancelListen := context.WithCancel(ctx)
	defer cancelListen()

	eventCh := make(chan event.Event, eventBufferSize)

	var wg sync.WaitGroup
	for _, c := range b.availableConnectors() {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lerr := c.Listen(listenCtx, eventCh); lerr != nil && listenCtx.Err() == nil {
				b.logger.Error().Err(lerr).Str("connector", c.Name()).Msg("listen loop exited")
				b.mu.Lock()
				b.available[c.Name()] = false
				b.mu.Unlock()
			}
		}()
	}

	// The pump submits events to Parse in arrival order; the channel
	// preserves each connector's production order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-listenCtx.Done():
				return
			case ev := <-eventCh:
				b.dispatcher.Parse(listenCtx, ev)
			}
		}
	}()

	go func() {
		if serr := b.web.Serve(); serr != nil {
			b.logger.Error().Err(serr).Msg("http surface error")
		}
	}()
	if b.admin != nil {
		go func() {
			if aerr := b.admin.Start(); aerr != nil {
				b.logger.Error().Err(aerr).Msg("admin server error")
			}
		}()
	}

	b.state.Store(int32(StateRunning))
	b.logger.Info().
		Int("connectors", len(b.availableConnectors())).
		Strs("parsers", b.dispatcher.Parsers()).
		Msg("bot running")

	if b.cfg.WelcomeMessage {
		b.sendWelcome(ctx)
	}

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-b.stopCh:
	case <-b.reloadCh:
		reload = true
	}

	cancelListen()
	wg.Wait()
	return reload, err
}

// drain releases everything run and connect acquired: skills finish up to
// the deadline, connectors and databases disconnect even when their connect
// never succeeded, and the HTTP surfaces stop. Running → Draining.
func (b *Bot) drain() {
	b.state.Store(int32(StateDraining))
	b.logger.Info().Msg("draining")

	drainCtx, cancel := context.WithTimeout(context.Background(), b.cfg.Matching.SkillDeadline+5*time.Second)
	defer cancel()

	if err := b.dispatcher.Drain(drainCtx); err != nil {
		b.logger.Warn().Err(err).Msg("skill drain incomplete")
	}

	for _, c := range b.connectors {
		if err := c.Disconnect(drainCtx); err != nil {
			b.logger.Warn().Err(err).Str("connector", c.Name()).Msg("disconnect failed")
		}
		b.mu.Lock()
		b.available[c.Name()] = false
		b.mu.Unlock()
	}
	for _, db := range b.databases {
		if err := db.Disconnect(drainCtx); err != nil {
			b.logger.Warn().Err(err).Str("db", db.Name()).Msg("database disconnect failed")
		}
	}

	if err := b.web.Shutdown(drainCtx); err != nil {
		b.logger.Warn().Err(err).Msg("http surface shutdown failed")
	}
	if b.admin != nil {
		if err := b.admin.Shutdown(); err != nil {
			b.logger.Warn().Err(err).Msg("admin shutdown failed")
		}
	}
	b.metrics.ConnectorsUp.Set(0)
}

func (b *Bot) availableConnectors() []connector.Connector {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]connector.Connector, 0, len(b.connectors))
	for _, c := range b.connectors {
		if b.available[c.Name()] {
			out = append(out, c)
		}
	}
	return out
}

// Status snapshots the bot for the admin API.
func (b *Bot) Status() admin.Status {
	b.mu.Lock()
	conns := make([]admin.ConnectorStatus, 0, len(b.connectors))
	for _, c := range b.connectors {
		conns = append(conns, admin.ConnectorStatus{Name: c.Name(), Connected: b.available[c.Name()]})
	}
	b.mu.Unlock()

	var parsers []string
	if b.dispatcher != nil {
		parsers = b.dispatcher.Parsers()
	}
	return admin.Status{
		State:      b.State().String(),
		Uptime:     time.Since(b.started).Round(time.Second).String(),
		Connectors: conns,
		Parsers:    parsers,
		Skills:     b.table.Len(),
	}
}

// sendWelcome greets through the first connector that has somewhere to
// send it.
func (b *Bot) sendWelcome(ctx context.Context) {
	text := welcomeText(b.cfg.Lang)
	for _, c := range b.availableConnectors() {
		msg := event.NewMessage(text)
		msg.Connector = c
		if err := c.Send(ctx, msg); err == nil {
			return
		}
	}
}

func welcomeText(lang string) string {
	switch lang {
	case "de":
		return "Hallo! Ich bin bereit. Schreib mir etwas."
	case "es":
		return "¡Hola! Estoy listo. Escríbeme algo."
	default:
		return "Hi! I'm up and listening. Say something to get started."
	}
}
