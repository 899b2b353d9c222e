package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Carmen-Shannon/oxy-deferred/engine/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	devLog     bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "oxy-render",
		Short:         "Multi-pass deferred renderer with SSAO and a voxel lightmap",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration")
	cmd.PersistentFlags().BoolVar(&opts.devLog, "dev-log", false, "human readable console logging")

	cmd.AddCommand(newRenderCommand(opts), newWindowCommand(opts), newShadersCommand(opts))
	return cmd
}

// load reads the configuration and starts the logger.
func (o *rootOptions) load() (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.devLog {
		cfg.Logging.Development = true
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Development); err != nil {
		return config.Config{}, fmt.Errorf("failed to start logging: %w", err)
	}
	return cfg, nil
}
