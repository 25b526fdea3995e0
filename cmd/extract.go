package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	extractDir    string
	extractUserID string
	extractJSON   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file.pdf]",
	Short: "Extract one PDF or a directory of PDFs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if extractDir == "" && len(args) == 0 {
			return eris.New("extract: pass a PDF path or --dir")
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if extractDir != "" {
			return extractBatch(ctx, env, extractDir)
		}
		return extractOne(ctx, env, args[0])
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractDir, "dir", "", "process every PDF in this directory")
	extractCmd.Flags().StringVar(&extractUserID, "user", "", "user id recorded with each run")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print the structured result as JSON")
	rootCmd.AddCommand(extractCmd)
}

func extractOne(ctx context.Context, env *pipelineEnv, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "extract: read %s", path)
	}

	result, err := env.Orchestrator.Process(ctx, data, filepath.Base(path), extractUserID)
	if err != nil {
		return err
	}

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	zap.L().Info("extraction complete",
		zap.String("file", filepath.Base(path)),
		zap.String("run_id", result.RunID),
		zap.String("method", string(result.Method)),
		zap.String("client", result.Proposal.Client),
		zap.Int("items", len(result.Proposal.Items)),
		zap.Float64("total", result.Proposal.Total),
		zap.Float64("quality", result.Quality),
	)
	return nil
}

// extractBatch walks dir for PDFs and runs them through the pipeline with
// bounded concurrency. Individual failures are logged, not fatal.
func extractBatch(ctx context.Context, env *pipelineEnv, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "extract: read dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		zap.L().Info("no PDFs found", zap.String("dir", dir))
		return nil
	}

	zap.L().Info("processing batch",
		zap.Int("files", len(paths)),
		zap.Int("concurrency", cfg.Pipeline.MaxConcurrent),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Pipeline.MaxConcurrent)

	var succeeded, failed atomic.Int64

	for _, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", filepath.Base(path)))

			data, err := os.ReadFile(path)
			if err != nil {
				failed.Add(1)
				log.Error("read failed", zap.Error(err))
				return nil
			}

			result, err := env.Orchestrator.Process(gctx, data, filepath.Base(path), extractUserID)
			if err != nil {
				failed.Add(1)
				log.Error("extraction failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			succeeded.Add(1)
			log.Info("extraction complete",
				zap.String("run_id", result.RunID),
				zap.String("method", string(result.Method)),
				zap.Int("items", len(result.Proposal.Items)),
				zap.Float64("total", result.Proposal.Total),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "extract: batch")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
