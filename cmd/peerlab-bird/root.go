package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"peerlab-bird/pkg/config"
	"peerlab-bird/pkg/journal"
	"peerlab-bird/pkg/logging"
)

// options carries the resolved configuration from PersistentPreRunE to the subcommands.
type options struct {
	configPath string
	flags      config.Config
	cfg        config.Config
	log        *slog.Logger
	lookupEnv  func(string) (string, bool)
}

func newOptions(lookupEnv func(string) (string, bool)) *options {
	return &options{flags: config.Default(), lookupEnv: lookupEnv}
}

func newRootCmdWithEnv(version string, lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmdWithOptions(version, newOptions(lookupEnv))
}

// logger is the configured logger, or a stderr text logger when configuration failed.
func (o *options) logger() *slog.Logger {
	if o.log != nil {
		return o.log
	}
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newRootCmdWithOptions(version string, o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "peerlab-bird",
		Short:         "Generate the BIRD peerlab user policy from Headscale and peerlab-gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.resolve(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, o)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "YAML config file (optional)")
	f.StringVar(&o.flags.HeadscaleURL, "headscale-api-url", o.flags.HeadscaleURL, "Headscale node API URL (env HEADSCALE_API_URL)")
	f.StringVar(&o.flags.HeadscaleAPIKey, "headscale-api-key", "", "Headscale API key (env HEADSCALE_API_KEY)")
	f.StringVar(&o.flags.GatewayURL, "peerlab-gateway-url", o.flags.GatewayURL, "peerlab-gateway mappings URL (env PEERLAB_GATEWAY_URL)")
	f.StringVar(&o.flags.GatewayAgentKey, "peerlab-agent-key", "", "peerlab-gateway agent key (env PEERLAB_AGENT_KEY)")
	f.StringVar(&o.flags.Output, "output-file", o.flags.Output, "generated BIRD config path (env BIRD_CONFIG_OUTPUT)")
	f.StringVar(&o.flags.Mode, "mode", o.flags.Mode, "output shape: enforce|split|asn (env BIRD_CONFIG_MODE)")
	f.StringVar(&o.flags.Digest, "digest", o.flags.Digest, "change digest: sha256|blake2b (env BIRD_CONFIG_DIGEST)")
	f.BoolVar(&o.flags.HashHeader, "hash-header", false, "include the generated header in the change digest (env BIRD_CONFIG_HASH_HEADER)")
	f.DurationVar(&o.flags.HTTPTimeout, "http-timeout", o.flags.HTTPTimeout, "timeout per upstream request (env HTTP_TIMEOUT)")
	f.DurationVar(&o.flags.Interval, "interval", 0, "if >0, repeat the sync on this interval instead of exiting (env SYNC_INTERVAL)")
	f.BoolVar(&o.flags.Reload, "reload", false, "run birdc configure after a change (env RELOAD_BIRD)")
	f.StringVar(&o.flags.BirdcPath, "birdc", o.flags.BirdcPath, "birdc binary (env BIRDC_PATH)")
	f.StringVar(&o.flags.BirdSocket, "bird-socket", "", "BIRD control socket passed to birdc -s (env BIRD_SOCKET)")
	f.BoolVar(&o.flags.Journal, "journal", false, "record runs in the SQLite journal at --state-db or "+journal.DefaultPath+" (env JOURNAL)")
	f.StringVar(&o.flags.StateDB, "state-db", "", "SQLite run journal path, implies --journal (env STATE_DB)")
	f.StringVar(&o.flags.MetricsFile, "metrics-file", "", "node_exporter textfile to write after each run (env METRICS_FILE)")
	f.StringVar(&o.flags.ConsulAddr, "consul-addr", "", "mirror changed configs to this Consul agent (env CONSUL_ADDR)")
	f.StringVar(&o.flags.ConsulToken, "consul-token", "", "Consul ACL token (env CONSUL_TOKEN)")
	f.StringVar(&o.flags.ConsulPrefix, "consul-prefix", "", "Consul KV prefix (env CONSUL_PREFIX, default peerlab/bird/)")
	f.StringVar(&o.flags.LogLevel, "log-level", o.flags.LogLevel, "debug|info|warn|error (env LOG_LEVEL)")
	f.StringVar(&o.flags.LogFormat, "log-format", o.flags.LogFormat, "text|json (env LOG_FORMAT)")

	cmd.AddCommand(newRenderCmd(o))
	cmd.AddCommand(newHistoryCmd(o))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.SetVersionTemplate("{{.Version}}\n")
	if version == "" {
		version = "dev"
	}
	cmd.Version = version
	return cmd
}

// resolve applies defaults < YAML file < .env/environment < flags.
func (o *options) resolve(fs *pflag.FlagSet) error {
	cfg := config.Default()
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	if o.configPath != "" {
		if err := cfg.LoadFile(o.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(o.lookupEnv); err != nil {
		return err
	}
	overrideChanged(fs, &cfg, o.flags)

	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = log
	return nil
}

// overrideChanged copies every explicitly set flag from fl into cfg.
func overrideChanged(fs *pflag.FlagSet, cfg *config.Config, fl config.Config) {
	set := map[string]func(){
		"headscale-api-url":   func() { cfg.HeadscaleURL = fl.HeadscaleURL },
		"headscale-api-key":   func() { cfg.HeadscaleAPIKey = fl.HeadscaleAPIKey },
		"peerlab-gateway-url": func() { cfg.GatewayURL = fl.GatewayURL },
		"peerlab-agent-key":   func() { cfg.GatewayAgentKey = fl.GatewayAgentKey },
		"output-file":         func() { cfg.Output = fl.Output },
		"mode":                func() { cfg.Mode = fl.Mode },
		"digest":              func() { cfg.Digest = fl.Digest },
		"hash-header":         func() { cfg.HashHeader = fl.HashHeader },
		"http-timeout":        func() { cfg.HTTPTimeout = fl.HTTPTimeout },
		"interval":            func() { cfg.Interval = fl.Interval },
		"reload":              func() { cfg.Reload = fl.Reload },
		"birdc":               func() { cfg.BirdcPath = fl.BirdcPath },
		"bird-socket":         func() { cfg.BirdSocket = fl.BirdSocket },
		"journal":             func() { cfg.Journal = fl.Journal },
		"state-db":            func() { cfg.StateDB = fl.StateDB },
		"metrics-file":        func() { cfg.MetricsFile = fl.MetricsFile },
		"consul-addr":         func() { cfg.ConsulAddr = fl.ConsulAddr },
		"consul-token":        func() { cfg.ConsulToken = fl.ConsulToken },
		"consul-prefix":       func() { cfg.ConsulPrefix = fl.ConsulPrefix },
		"log-level":           func() { cfg.LogLevel = fl.LogLevel },
		"log-format":          func() { cfg.LogFormat = fl.LogFormat },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}

func httpTimeout(cfg config.Config) time.Duration {
	if cfg.HTTPTimeout <= 0 {
		return 30 * time.Second
	}
	return cfg.HTTPTimeout
}
