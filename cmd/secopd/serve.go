package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SampleEnvironment/secop-go/pkg/config"
	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/secop"
)

var flagServeConfig string

var serveCmd = &cobra.Command{
	Use:   "serve --config <file>",
	Short: "Load a node/module definition and serve it over TCP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagServeConfig)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		lib := secop.New()
		ids, err := lib.LoadConfig(cfg)
		if err != nil {
			return err
		}

		if cfg.Diag.Addr != "" {
			if err := lib.EnableDiagnostics(ctx, cfg.Diag.Addr, cfg.Diag.ActivityCap); err != nil {
				return fmt.Errorf("enable diagnostics: %w", err)
			}
		}

		for _, id := range ids {
			addr, err := lib.ServeNode(id)
			if err != nil {
				return fmt.Errorf("serve node %q: %w", id, err)
			}
			log.Logger.Info().Str("node", id).Str("addr", addr.String()).Msg("node listening")
		}

		<-ctx.Done()
		log.Logger.Info().Msg("shutting down")
		lib.Shutdown()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeConfig, "config", "", "path to the node/module YAML definition")
	_ = serveCmd.MarkFlagRequired("config")
}
