package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warblebot/warble/internal/errors"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, 8090, cfg.Web.AdminPort)
	assert.Equal(t, 30*time.Second, cfg.Matching.SkillDeadline)
	assert.Equal(t, 10*time.Second, cfg.Matching.ParseTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Timestamp)
	assert.True(t, cfg.Logging.Extended)
	assert.Equal(t, "en", cfg.Lang)
	assert.False(t, cfg.Matching.Ranked)
}

func TestParse_LoggingFilter(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  level: debug
  path: /var/log/warble.log
  timestamp: false
  filter:
    whitelist: [dispatcher, runner]
    blacklist: [memory]
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/log/warble.log", cfg.Logging.Path)
	assert.False(t, cfg.Logging.Timestamp)
	assert.Equal(t, []string{"dispatcher", "runner"}, cfg.Logging.Filter.Whitelist)
	assert.Equal(t, []string{"memory"}, cfg.Logging.Filter.Blacklist)
}

func TestParse_FullDocument(t *testing.T) {
	cfg, err := Parse([]byte(`
lang: de
welcome-message: true
connectors:
  shell:
    bot-name: testbot
    thinking-delay: 2
    typing-delay: [0.1, 0.4]
  websocket:
    bot-name: testbot
parsers:
  rasanlu:
    enabled: true
    endpoint: http://localhost:5005/model/parse
    min-score: 0.7
matching:
  ranked: true
  skill-deadline: 5s
web:
  port: 9000
databases:
  redis:
    addr: localhost:6379
    prefix: "bot:"
`))
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.Lang)
	assert.True(t, cfg.WelcomeMessage)
	assert.True(t, cfg.Matching.Ranked)
	assert.Equal(t, 5*time.Second, cfg.Matching.SkillDeadline)
	assert.Equal(t, 9000, cfg.Web.Port)

	shell, ok := cfg.Connectors["shell"]
	require.True(t, ok)
	assert.Equal(t, "testbot", shell.BotName)
	assert.Equal(t, DelayRange{2, 2}, shell.ThinkingDelay)
	assert.Equal(t, DelayRange{0.1, 0.4}, shell.TypingDelay)

	nlu, ok := cfg.Parsers["rasanlu"]
	require.True(t, ok)
	assert.True(t, nlu.Enabled)
	assert.InDelta(t, 0.7, nlu.MinScore, 1e-12)

	require.NotNil(t, cfg.Databases.Redis)
	assert.Equal(t, "localhost:6379", cfg.Databases.Redis.Addr)
	assert.Equal(t, "bot:", cfg.Databases.Redis.Prefix)
}

func TestParse_EnvInterpolation(t *testing.T) {
	t.Setenv("WARBLE_TEST_TOKEN", "s3cret")
	t.Setenv("WARBLE_TEST_PORT", "9191")

	cfg, err := Parse([]byte(`
parsers:
  nlu:
    enabled: true
    endpoint: http://nlu.local/parse
    token: $WARBLE_TEST_TOKEN
web:
  port: ${WARBLE_TEST_PORT}
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Parsers["nlu"].Token)
	assert.Equal(t, 9191, cfg.Web.Port)
}

func TestParse_MissingEnvIsFatal(t *testing.T) {
	_, err := Parse([]byte(`
parsers:
  nlu:
    token: $WARBLE_DEFINITELY_UNSET_VAR
`))
	require.Error(t, err)
	var cerr *errors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "WARBLE_DEFINITELY_UNSET_VAR", cerr.Key)
	assert.True(t, errors.IsFatal(err))
}

func TestParse_LiteralDollarInsideStringKept(t *testing.T) {
	cfg, err := Parse([]byte(`
connectors:
  shell:
    bot-name: "cost is $5 per call"
`))
	require.NoError(t, err)
	assert.Equal(t, "cost is $5 per call", cfg.Connectors["shell"].BotName)
}

func TestParse_UnknownTopLevelKeysPreserved(t *testing.T) {
	cfg, err := Parse([]byte(`
lang: en
custom-section:
  anything: goes
`))
	require.NoError(t, err)
	require.Contains(t, cfg.Extra, "custom-section")
	assert.NotContains(t, cfg.Extra, "lang")
}

func TestParse_ConnectorExtraKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
connectors:
  shell:
    bot-name: bot
    some-vendor-flag: true
`))
	require.NoError(t, err)
	shell := cfg.Connectors["shell"]
	assert.Equal(t, true, shell.Extra["some-vendor-flag"])
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":\n  - ["))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestDelayRange_ScalarEqualsDegenerateRange(t *testing.T) {
	cfg, err := Parse([]byte(`
connectors:
  a:
    thinking-delay: 1.5
  b:
    thinking-delay: [1.5, 1.5]
`))
	require.NoError(t, err)
	assert.Equal(t, cfg.Connectors["a"].ThinkingDelay, cfg.Connectors["b"].ThinkingDelay)
}

func TestDelayRange_BadShape(t *testing.T) {
	_, err := Parse([]byte(`
connectors:
  a:
    thinking-delay: [1, 2, 3]
`))
	assert.Error(t, err)
}

func TestLoadBootstrap_Defaults(t *testing.T) {
	b, err := LoadBootstrap()
	require.NoError(t, err)
	assert.NotEmpty(t, b.Environment)
	assert.NotEmpty(t, b.ConfigPath)
}
