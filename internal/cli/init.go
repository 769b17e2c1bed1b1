package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/hive/internal/store"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize hive storage",
		Long:  "Write the default config.yaml if missing, then create the object table.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	backend := store.NewBackend(zerolog.Nop())
	if err := backend.Attach(context.Background(), cfg); err != nil {
		return systemError("initialize storage: %w", err)
	}
	if err := backend.Detach(); err != nil {
		return systemError("finalize storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "hive initialized (%s, %s)\n", cfg.Database.Driver, cfg.DataDir)
	return nil
}
