package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/t77yq/txservice/internal/storage"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registered tasks, contract addresses and recent task runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			tasks, err := store.ListTasks(ctx, false)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "TASK\tNAME\tINTERVAL\tENABLED\tRUNS")
			for _, task := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", task.Task, task.Name, task.Interval, task.Enabled, task.TotalRunCount)
			}

			masterCopies, err := store.ListMasterCopies(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "\nMASTER COPY\tVERSION\tL2\tINITIAL BLOCK\tCURRENT BLOCK")
			for _, mc := range masterCopies {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\n", mc.Address, mc.Version, mc.L2, mc.InitialBlockNumber, mc.CurrentBlockNumber)
			}

			factories, err := store.ListProxyFactories(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "\nPROXY FACTORY\tINITIAL BLOCK\tCURRENT BLOCK")
			for _, pf := range factories {
				fmt.Fprintf(w, "%s\t%d\t%d\n", pf.Address, pf.InitialBlockNumber, pf.CurrentBlockNumber)
			}

			if runs <= 0 {
				return nil
			}
			recent, err := store.List(ctx, "", 0, runs)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "\nRUN\tTASK\tSTATUS\tSTARTED\tERROR")
			for _, run := range recent {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", run.ID, run.Task, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), run.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 10, "number of recent task runs to show")
	return cmd
}
