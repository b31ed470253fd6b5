package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warblebot/warble/internal/event"
	"github.com/warblebot/warble/internal/metrics"
	"github.com/warblebot/warble/internal/skill"
)

func newServer(t *testing.T, state string) *Server {
	t.Helper()
	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))
	table := skill.NewTable(reg)
	require.NoError(t, table.Register(skill.New("greet",
		func(context.Context, event.Event) error { return nil },
		skill.WithMatchers(&skill.Regex{Pattern: `^hi$`}),
		skill.WithConstraints(skill.Rooms([]string{"#general"}, false)),
	)))

	status := func() Status {
		return Status{
			State:      state,
			Uptime:     "1m0s",
			Connectors: []ConnectorStatus{{Name: "shell", Connected: true}},
			Parsers:    []string{"regex", "event", "catchall"},
			Skills:     table.Len(),
		}
	}
	return New(Config{ListenAddr: "127.0.0.1:0"}, table, status, metrics.New(), zerolog.Nop())
}

func doGet(t *testing.T, s *Server, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func TestHealthz(t *testing.T) {
	s := newServer(t, "running")
	resp, body := doGet(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")
}

func TestReadyz_Running(t *testing.T) {
	s := newServer(t, "running")
	resp, _ := doGet(t, s, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyz_NotRunning(t *testing.T) {
	s := newServer(t, "draining")
	resp, body := doGet(t, s, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "draining")
}

func TestSkillsEndpoint(t *testing.T) {
	s := newServer(t, "running")
	resp, body := doGet(t, s, "/api/v1/skills")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var skills []map[string]any
	require.NoError(t, json.Unmarshal(body, &skills))
	require.Len(t, skills, 1)
	assert.Equal(t, "greet", skills[0]["name"])
	assert.Contains(t, skills[0]["matchers"], "regex")
	assert.Contains(t, skills[0]["constraints"], "rooms")
}

func TestConnectorsEndpoint(t *testing.T) {
	s := newServer(t, "running")
	resp, body := doGet(t, s, "/api/v1/connectors")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var conns []ConnectorStatus
	require.NoError(t, json.Unmarshal(body, &conns))
	require.Len(t, conns, 1)
	assert.Equal(t, "shell", conns[0].Name)
	assert.True(t, conns[0].Connected)
}

func TestStatsEndpoint(t *testing.T) {
	s := newServer(t, "running")
	resp, body := doGet(t, s, "/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 1, st.Skills)
	assert.Equal(t, []string{"regex", "event", "catchall"}, st.Parsers)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.RecordEvent("shell", "message")

	reg := event.NewRegistry()
	require.NoError(t, event.RegisterCore(reg))
	s := New(Config{}, skill.NewTable(reg), func() Status { return Status{State: "running"} }, m, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "warble_events_total")
}
