package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"peerlab-bird/pkg/agent"
	"peerlab-bird/pkg/bird"
	"peerlab-bird/pkg/config"
	"peerlab-bird/pkg/consul"
	"peerlab-bird/pkg/headscale"
	"peerlab-bird/pkg/journal"
	"peerlab-bird/pkg/metrics"
	"peerlab-bird/pkg/peerlab"
	"peerlab-bird/pkg/persist"
)

func runSync(cmd *cobra.Command, o *options) error {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	log := o.log

	log.Info("peerlab-bird", "version", cmd.Root().Version)
	log.Info("Headscale API", "url", cfg.HeadscaleURL)
	log.Info("peerlab-gateway API", "url", cfg.GatewayURL)
	log.Info("output file", "path", cfg.Output, "mode", cfg.Mode)

	s, closeFn, err := buildSyncer(ctx, cfg, o)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.Interval > 0 {
		log.Info("sync loop started", "interval", cfg.Interval)
		s.Loop(ctx, cfg.Interval)
		return nil
	}
	res, err := s.Sync(ctx)
	if err != nil {
		return err
	}
	if res.Changed {
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s (%d clauses)\n", cfg.Output, res.Stats.Clauses)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "unchanged %s\n", cfg.Output)
	}
	return nil
}

func buildSyncer(ctx context.Context, cfg config.Config, o *options) (*agent.Syncer, func(), error) {
	mode, err := bird.ParseMode(cfg.Mode)
	if err != nil {
		return nil, nil, err
	}
	alg, err := persist.ParseAlgorithm(cfg.Digest)
	if err != nil {
		return nil, nil, err
	}
	client := &http.Client{Timeout: httpTimeout(cfg)}

	w := persist.NewWriter(o.log)
	w.Algorithm = alg
	if !cfg.HashHeader {
		w.Normalize = bird.StripHeaderBytes
	}

	s := &agent.Syncer{
		Nodes:    headscale.New(cfg.HeadscaleURL, cfg.HeadscaleAPIKey, client),
		Mappings: peerlab.New(cfg.GatewayURL, cfg.GatewayAgentKey, client),
		Writer:   w,
		Output:   cfg.Output,
		Mode:     mode,
		Credentials: map[string]string{
			"headscale API key": cfg.HeadscaleAPIKey,
			"peerlab agent key": cfg.GatewayAgentKey,
		},
		Metrics:     metrics.New(),
		MetricsFile: cfg.MetricsFile,
		Logger:      o.log,
	}
	if cfg.Reload {
		s.Reloader = agent.BirdReloader{Birdc: cfg.BirdcPath, Socket: cfg.BirdSocket}
	}
	if cfg.ConsulAddr != "" {
		p, err := consul.NewPublisher(cfg.ConsulAddr, cfg.ConsulToken, cfg.ConsulPrefix)
		if err != nil {
			return nil, nil, err
		}
		s.Publisher = p
	}
	closeFn := func() {}
	if path := cfg.JournalPath(); path != "" {
		j, err := journal.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		s.Journal = j
		closeFn = func() { _ = j.Close() }
	}
	return s, closeFn, nil
}
