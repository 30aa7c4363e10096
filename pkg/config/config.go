package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"peerlab-bird/pkg/bird"
	"peerlab-bird/pkg/headscale"
	"peerlab-bird/pkg/journal"
	"peerlab-bird/pkg/peerlab"
	"peerlab-bird/pkg/persist"
)

// DefaultOutput is the file BIRD includes from its main config.
const DefaultOutput = "/etc/bird/peerlab_generated.conf"

// Config is the full runtime configuration of peerlab-bird.
type Config struct {
	HeadscaleURL    string        `yaml:"headscale_api_url"`
	HeadscaleAPIKey string        `yaml:"headscale_api_key"`
	GatewayURL      string        `yaml:"peerlab_gateway_url"`
	GatewayAgentKey string        `yaml:"peerlab_agent_key"`
	Output          string        `yaml:"output_file"`
	Mode            string        `yaml:"mode"`
	Digest          string        `yaml:"digest"`
	HashHeader      bool          `yaml:"hash_header"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	Interval        time.Duration `yaml:"interval"`
	Reload          bool          `yaml:"reload_bird"`
	BirdcPath       string        `yaml:"birdc_path"`
	BirdSocket      string        `yaml:"bird_socket"`
	Journal         bool          `yaml:"journal"`
	StateDB         string        `yaml:"state_db"`
	MetricsFile     string        `yaml:"metrics_file"`
	ConsulAddr      string        `yaml:"consul_addr"`
	ConsulToken     string        `yaml:"consul_token"`
	ConsulPrefix    string        `yaml:"consul_prefix"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HeadscaleURL: headscale.DefaultURL,
		GatewayURL:   peerlab.DefaultURL,
		Output:       DefaultOutput,
		Mode:         string(bird.ModeEnforce),
		Digest:       string(persist.SHA256),
		HTTPTimeout:  30 * time.Second,
		BirdcPath:    "birdc",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// LoadDotEnv loads .env from the working directory when present. Existing variables win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file keep their value.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// EnvBinding ties an environment variable to a config field.
type EnvBinding struct {
	Name string
	set  func(*Config, string) error
}

func str(p func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *p(c) = v; return nil }
}

func boolean(p func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p(c) = b
		return nil
	}
}

func duration(p func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p(c) = d
		return nil
	}
}

// Env lists the supported environment variables.
var Env = []EnvBinding{
	{"HEADSCALE_API_URL", str(func(c *Config) *string { return &c.HeadscaleURL })},
	{"HEADSCALE_API_KEY", str(func(c *Config) *string { return &c.HeadscaleAPIKey })},
	{"PEERLAB_GATEWAY_URL", str(func(c *Config) *string { return &c.GatewayURL })},
	{"PEERLAB_AGENT_KEY", str(func(c *Config) *string { return &c.GatewayAgentKey })},
	{"BIRD_CONFIG_OUTPUT", str(func(c *Config) *string { return &c.Output })},
	{"BIRD_CONFIG_MODE", str(func(c *Config) *string { return &c.Mode })},
	{"BIRD_CONFIG_DIGEST", str(func(c *Config) *string { return &c.Digest })},
	{"BIRD_CONFIG_HASH_HEADER", boolean(func(c *Config) *bool { return &c.HashHeader })},
	{"HTTP_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.HTTPTimeout })},
	{"SYNC_INTERVAL", duration(func(c *Config) *time.Duration { return &c.Interval })},
	{"RELOAD_BIRD", boolean(func(c *Config) *bool { return &c.Reload })},
	{"BIRDC_PATH", str(func(c *Config) *string { return &c.BirdcPath })},
	{"BIRD_SOCKET", str(func(c *Config) *string { return &c.BirdSocket })},
	{"JOURNAL", boolean(func(c *Config) *bool { return &c.Journal })},
	{"STATE_DB", str(func(c *Config) *string { return &c.StateDB })},
	{"METRICS_FILE", str(func(c *Config) *string { return &c.MetricsFile })},
	{"CONSUL_ADDR", str(func(c *Config) *string { return &c.ConsulAddr })},
	{"CONSUL_TOKEN", str(func(c *Config) *string { return &c.ConsulToken })},
	{"CONSUL_PREFIX", str(func(c *Config) *string { return &c.ConsulPrefix })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.LogFormat })},
}

// ApplyEnv overlays non-empty variables returned by lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range Env {
		v, ok := lookup(b.Name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(c, v); err != nil {
			return fmt.Errorf("env %s: %w", b.Name, err)
		}
	}
	return nil
}

// JournalPath is the run journal to use: StateDB when set, journal.DefaultPath when only
// Journal is enabled, "" when recording is off.
func (c Config) JournalPath() string {
	if c.StateDB != "" {
		return c.StateDB
	}
	if c.Journal {
		return journal.DefaultPath
	}
	return ""
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.HeadscaleAPIKey == "" {
		errs = append(errs, errors.New("headscale API key is required (--headscale-api-key or HEADSCALE_API_KEY)"))
	}
	if c.GatewayAgentKey == "" {
		errs = append(errs, errors.New("peerlab agent key is required (--peerlab-agent-key or PEERLAB_AGENT_KEY)"))
	}
	errs = append(errs, c.ValidateRender())
	if c.HeadscaleURL == "" || c.GatewayURL == "" {
		errs = append(errs, errors.New("API URLs must not be empty"))
	}
	if c.Interval < 0 {
		errs = append(errs, errors.New("interval must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateRender checks the settings needed to render and write, without credentials.
func (c Config) ValidateRender() error {
	var errs []error
	if c.Output == "" {
		errs = append(errs, errors.New("output file is required"))
	}
	if _, err := bird.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := persist.ParseAlgorithm(c.Digest); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
