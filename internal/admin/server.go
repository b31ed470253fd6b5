// Package admin is the management API: health probes, Prometheus metrics,
// and read-only introspection of the running bot.
package admin

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/skill"
)

// ConnectorStatus is one connector's availability.
type ConnectorStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Status is a snapshot of the bot for the stats endpoint.
type Status struct {
	State      string            `json:"state"`
	Uptime     string            `json:"uptime"`
	Connectors []ConnectorStatus `json:"connectors"`
	Parsers    []string          `json:"parsers"`
	Skills     int               `json:"skills"`
}

// Config holds the admin server configuration.
type Config struct {
	ListenAddr string
}

// Server is the admin Fiber application.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger zerolog.Logger
}

// New creates the admin server. status is called per request and must be
// safe for concurrent use.
func New(cfg Config, table *skill.Table, status func() Status, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{
		app:    app,
		cfg:    cfg,
		logger: logger.With().Str("component", "admin").Logger(),
	}

	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}
		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Msg("admin api request")
		return c.Next()
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/readyz", func(c *fiber.Ctx) error {
		st := status()
		if st.State != "running" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"state": st.State})
		}
		return c.JSON(fiber.Map{"state": st.State})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := app.Group("/api/v1")
	v1.Get("/skills", func(c *fiber.Ctx) error {
		skills := table.Skills()
		out := make([]fiber.Map, 0, len(skills))
		for _, sk := range skills {
			out = append(out, fiber.Map{
				"name":        sk.Name,
				"matchers":    matcherFamilies(sk),
				"constraints": constraintNames(sk),
			})
		}
		return c.JSON(out)
	})
	v1.Get("/connectors", func(c *fiber.Ctx) error {
		return c.JSON(status().Connectors)
	})
	v1.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(status())
	})

	return s
}

// Start serves the admin API. Blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("admin server starting")
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("admin server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App { return s.app }

func matcherFamilies(s *skill.Skill) []string {
	out := make([]string, 0, len(s.Matchers))
	for _, m := range s.Matchers {
		out = append(out, m.Family())
	}
	return out
}

func constraintNames(s *skill.Skill) []string {
	out := make([]string, 0, len(s.Constraints))
	for _, c := range s.Constraints {
		out = append(out, c.Name)
	}
	return out
}
