package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/construdata/proposta-cli/internal/model"
	"github.com/construdata/proposta-cli/internal/store"
)

var (
	exportOut    string
	exportStatus string
	exportUserID string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export extraction runs to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runs, err := env.Store.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(exportStatus),
			UserID: exportUserID,
			Limit:  exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list runs")
		}
		if len(runs) == 0 {
			zap.L().Info("no runs to export")
			return nil
		}

		if err := writeWorkbook(exportOut, runs); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("file", exportOut),
			zap.Int("runs", len(runs)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "propostas.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by run status (completed, degraded, failed)")
	exportCmd.Flags().StringVar(&exportUserID, "user", "", "filter by user id")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 500, "max runs to export")
	rootCmd.AddCommand(exportCmd)
}

// writeWorkbook produces two sheets: one run per row, and one line item per
// row keyed by run id.
func writeWorkbook(path string, runs []model.ExtractionRun) error {
	f := xlsx.NewFile()

	runsSheet, err := f.AddSheet("Extrações")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	header := runsSheet.AddRow()
	for _, h := range []string{"ID", "Arquivo", "Cliente", "Método", "Status", "Total", "Qualidade", "Duração (ms)", "Data"} {
		header.AddCell().SetString(h)
	}
	for _, run := range runs {
		row := runsSheet.AddRow()
		row.AddCell().SetString(run.ID)
		row.AddCell().SetString(run.FileName)
		row.AddCell().SetString(run.Client)
		row.AddCell().SetString(string(run.Method))
		row.AddCell().SetString(string(run.Status))
		row.AddCell().SetFloat(run.Total)
		row.AddCell().SetFloat(run.Quality)
		row.AddCell().SetInt64(run.ElapsedMS)
		row.AddCell().SetString(run.CreatedAt.Format(time.RFC3339))
	}

	itemsSheet, err := f.AddSheet("Itens")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	itemsHeader := itemsSheet.AddRow()
	for _, h := range []string{"Extração", "Descrição", "Quantidade", "Unidade", "Valor Unitário", "Total"} {
		itemsHeader.AddCell().SetString(h)
	}
	for _, run := range runs {
		if run.Proposal == nil {
			continue
		}
		for _, item := range run.Proposal.Items {
			row := itemsSheet.AddRow()
			row.AddCell().SetString(run.ID)
			row.AddCell().SetString(item.Description)
			row.AddCell().SetFloat(item.Quantity)
			row.AddCell().SetString(item.Unit)
			row.AddCell().SetFloat(item.UnitPrice)
			row.AddCell().SetFloat(item.Total)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
