package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

func newShadersCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shaders [name...]",
		Short: "Compile the embedded WGSL shaders with naga",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := root.load(); err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = shader.AssetNames()
			}
			return validateShaders(cmd, names)
		},
	}
}

func validateShaders(cmd *cobra.Command, names []string) error {
	log := logger.Named("shaders")
	var errs error
	for _, name := range names {
		err := shader.ValidateAsset(name)
		if shader.IsCompilerLimitation(err) {
			fmt.Fprintf(cmd.OutOrStdout(), "SKIP %s\n", name)
			log.Info("shader uses a feature naga cannot lower yet", zap.String("shader", name), zap.Error(err))
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", name)
			log.Debug("shader rejected", zap.String("shader", name), zap.Error(err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", name)
	}
	if errs != nil {
		return fmt.Errorf("%d of %d shaders failed: %w", len(multierr.Errors(errs)), len(names), errs)
	}
	return nil
}
