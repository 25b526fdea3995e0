package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/internal/store"
)

var (
	runsStatus string
	runsMethod string
	runsUserID string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded extraction runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Method: model.ExtractionMethod(runsMethod),
			UserID: runsUserID,
			Limit:  runsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATA\tARQUIVO\tCLIENTE\tMÉTODO\tSTATUS\tTOTAL\tQUALIDADE")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%.2f\n",
				run.CreatedAt.Format(time.DateTime),
				run.FileName,
				run.Client,
				run.Method,
				run.Status,
				run.Total,
				run.Quality,
			)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (completed, degraded, failed)")
	runsCmd.Flags().StringVar(&runsMethod, "method", "", "filter by extraction method")
	runsCmd.Flags().StringVar(&runsUserID, "user", "", "filter by user id")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 50, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
