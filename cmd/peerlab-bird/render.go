package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"peerlab-bird/pkg/bird"
	"peerlab-bird/pkg/headscale"
	"peerlab-bird/pkg/peerlab"
)

func newRenderCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Fetch both datasets and print the generated config without writing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := o.cfg
			if cfg.HeadscaleAPIKey == "" || cfg.GatewayAgentKey == "" {
				return errors.New("render needs --headscale-api-key and --peerlab-agent-key")
			}
			mode, err := bird.ParseMode(cfg.Mode)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := &http.Client{Timeout: httpTimeout(cfg)}

			nodes, err := headscale.New(cfg.HeadscaleURL, cfg.HeadscaleAPIKey, client).FetchNodes(ctx)
			if err != nil {
				return err
			}
			mappings, err := peerlab.New(cfg.GatewayURL, cfg.GatewayAgentKey, client).FetchMappings(ctx)
			if err != nil {
				return err
			}
			out := bird.Render(nodes, mappings, bird.Options{Mode: mode, Logger: o.log})
			_, err = cmd.OutOrStdout().Write([]byte(out.Text))
			return err
		},
	}
}
