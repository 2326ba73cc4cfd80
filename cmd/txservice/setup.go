package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/t77yq/txservice/internal/network"
	"github.com/t77yq/txservice/internal/setup"
	"github.com/t77yq/txservice/internal/storage"
)

func newSetupCommand(opts *rootOptions) *cobra.Command {
	var printReport bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the periodic tasks and seed the Safe contract addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			detector := network.NewEthereumDetector(cfg.Ethereum.NodeURL, logger)
			defer detector.Close()

			service := setup.NewService(
				setup.NewReconciler(store, store, logger),
				detector,
				setup.DefaultAddressTable(),
				setup.ServiceConfig{
					Namespace: cfg.Tasks.Namespace,
					L2Network: cfg.Ethereum.L2Network,
				},
				logger,
			)

			report, err := service.Run(cmd.Context())
			if err != nil {
				return err
			}
			if printReport {
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printReport, "print", false, "print the reconciliation report as JSON")
	return cmd
}
