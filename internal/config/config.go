// Package config loads the warble configuration: bootstrap settings from
// environment variables, and the bot configuration file from YAML with
// environment-variable interpolation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/warblebot/warble/internal/errors"
)

// Bootstrap holds process-level settings read from the environment.
type Bootstrap struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ConfigPath  string `envconfig:"WARBLE_CONFIG" default:"warble.yaml"`
}

// LoadBootstrap reads bootstrap settings from environment variables.
func LoadBootstrap() (*Bootstrap, error) {
	var b Bootstrap
	if err := envconfig.Process("", &b); err != nil {
		return nil, fmt.Errorf("loading bootstrap config: %w", err)
	}
	return &b, nil
}

// DelayRange is a delay in seconds, configured either as a scalar or as a
// two-element [lo, hi] range for uniform random sampling. A scalar x is the
// degenerate range [x, x].
type DelayRange [2]float64

// UnmarshalYAML accepts `3`, `3.5`, or `[2, 4]`.
func (d *DelayRange) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return errors.NewConfigError("delay", "expected a number, got %q", node.Value)
		}
		*d = DelayRange{v, v}
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil || len(vs) != 2 {
			return errors.NewConfigError("delay", "expected [lo, hi], got %q", node.Value)
		}
		*d = DelayRange{vs[0], vs[1]}
		return nil
	default:
		return errors.NewConfigError("delay", "expected a number or [lo, hi]")
	}
}

// IsZero reports whether the range is unset.
func (d DelayRange) IsZero() bool { return d[0] == 0 && d[1] == 0 }

// Connector configures one connector instance. Unknown keys are passed
// through to the connector untouched.
type Connector struct {
	BotName       string         `yaml:"bot-name"`
	DefaultTarget string         `yaml:"default-target"`
	Rooms         []string       `yaml:"rooms"`
	ThinkingDelay DelayRange     `yaml:"thinking-delay"`
	TypingDelay   DelayRange     `yaml:"typing-delay"`
	Extra         map[string]any `yaml:",inline"`
}

// Parser configures one parser. Vendor-specific auth fields live in Extra.
type Parser struct {
	Enabled  bool           `yaml:"enabled"`
	Endpoint string         `yaml:"endpoint"`
	Token    string         `yaml:"token"`
	MinScore float64        `yaml:"min-score"`
	Extra    map[string]any `yaml:",inline"`
}

// Skill configures one skill. The whole mapping is handed to the skill.
type Skill map[string]any

// Logging configures log output.
type Logging struct {
	Level     string    `yaml:"level"`
	Path      string    `yaml:"path"`
	Console   bool      `yaml:"console"`
	Extended  bool      `yaml:"extended"`
	Timestamp bool      `yaml:"timestamp"`
	Filter    LogFilter `yaml:"filter"`
}

// LogFilter restricts log output by component name. A non-empty whitelist
// admits only the listed components; the blacklist drops the listed ones.
type LogFilter struct {
	Whitelist []string `yaml:"whitelist"`
	Blacklist []string `yaml:"blacklist"`
}

// SSL holds the TLS key pair for the web surface.
type SSL struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Web configures the shared HTTP surface and the admin API.
type Web struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	AdminPort int    `yaml:"admin-port"`
	SSL       SSL    `yaml:"ssl"`
	BaseURL   string `yaml:"base-url"`
}

// Matching configures the dispatcher.
type Matching struct {
	Ranked        bool          `yaml:"ranked"`
	SkillDeadline time.Duration `yaml:"skill-deadline"`
	ParseTimeout  time.Duration `yaml:"parse-timeout"`
}

// Databases configures memory backends.
type Databases struct {
	Redis *Redis `yaml:"redis"`
}

// Redis configures the Redis memory database.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Config is the decoded bot configuration file.
type Config struct {
	Connectors     map[string]Connector `yaml:"connectors"`
	Skills         map[string]Skill     `yaml:"skills"`
	Parsers        map[string]Parser    `yaml:"parsers"`
	Databases      Databases            `yaml:"databases"`
	Logging        Logging              `yaml:"logging"`
	Web            Web                  `yaml:"web"`
	Matching       Matching             `yaml:"matching"`
	Lang           string               `yaml:"lang"`
	WelcomeMessage bool                 `yaml:"welcome-message"`
	ModulePath     string               `yaml:"module-path"`

	// Extra preserves unknown top-level keys for components that want them.
	Extra map[string]any `yaml:"-"`
}

var knownTopLevel = map[string]bool{
	"connectors": true, "skills": true, "parsers": true, "databases": true,
	"logging": true, "web": true, "matching": true, "lang": true,
	"welcome-message": true, "module-path": true,
}

// Load reads, interpolates, and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(path, "reading config file: %v", err)
	}
	return Parse(data)
}

// Parse decodes configuration bytes. Scalars of the form $NAME or ${NAME}
// are replaced with the environment value; a missing variable is fatal.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigError("", "parsing yaml: %v", err)
	}
	if err := interpolate(&doc); err != nil {
		return nil, err
	}

	cfg := &Config{
		Web:      Web{Port: 8080, AdminPort: 8090},
		Matching: Matching{SkillDeadline: 30 * time.Second, ParseTimeout: 10 * time.Second},
		Logging:  Logging{Level: "info", Extended: true, Timestamp: true},
		Lang:     "en",
	}
	if len(doc.Content) == 0 {
		return cfg, nil
	}
	if err := doc.Decode(cfg); err != nil {
		return nil, errors.NewConfigError("", "decoding config: %v", err)
	}

	// Preserve unknown top-level keys.
	var all map[string]any
	if err := doc.Decode(&all); err == nil {
		for k, v := range all {
			if !knownTopLevel[k] {
				if cfg.Extra == nil {
					cfg.Extra = make(map[string]any)
				}
				cfg.Extra[k] = v
			}
		}
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`^\$(?:\{([A-Za-z_][A-Za-z0-9_]*)\}|([A-Za-z_][A-Za-z0-9_]*))$`)

// interpolate walks the YAML tree replacing $NAME / ${NAME} scalars.
func interpolate(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		m := envRef.FindStringSubmatch(node.Value)
		if m == nil {
			return nil
		}
		name := m[1]
		if name == "" {
			name = m[2]
		}
		val, ok := os.LookupEnv(name)
		if !ok {
			return errors.NewConfigError(name, "environment variable is not set")
		}
		node.Value = val
		node.Tag = "" // re-resolved on decode, so numeric values stay numeric
		return nil
	}
	for _, child := range node.Content {
		if err := interpolate(child); err != nil {
			return err
		}
	}
	return nil
}

// Delays converts the connector's delay configuration to event delays.
func (c Connector) Delays() ([2]float64, [2]float64) {
	return [2]float64(c.ThinkingDelay), [2]float64(c.TypingDelay)
}
