package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/elasticsearch"
	"github.com/trashposts/post-search/internal/ingest"
)

var (
	indexFile      string
	indexBatchSize int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Recreate the posts index and bulk-load a CSV export (destructive)",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexFile, "file", "", "CSV file to load (default CSV_PATH)")
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", 0, "documents per bulk request (default BULK_BATCH_SIZE)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	path := cfg.CSVPath
	if indexFile != "" {
		path = indexFile
	}
	batchSize := cfg.BulkBatchSize
	if indexBatchSize > 0 {
		batchSize = indexBatchSize
	}

	es, err := elasticsearch.NewClient(elasticsearch.Options{
		URL:           cfg.Elasticsearch.URL,
		Username:      cfg.Elasticsearch.Username,
		Password:      cfg.Elasticsearch.Password,
		SkipTLSVerify: cfg.Elasticsearch.SkipTLSVerify,
	})
	if err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("indexing started",
		zap.String("file", path),
		zap.String("index", cfg.Elasticsearch.Index),
		zap.Int("batch_size", batchSize))

	res, err := ingest.Rebuild(ctx, es, ingest.RebuildOptions{
		Path:      path,
		Index:     cfg.Elasticsearch.Index,
		BatchSize: batchSize,
		Timeout:   cfg.Elasticsearch.Timeout,
	}, log.Named("ingest"))
	if res != nil {
		fields := []zap.Field{
			zap.Int("rows_read", res.RowsRead),
			zap.Int("indexed", res.Indexed),
			zap.Int("failed", res.Failed),
			zap.Int64("doc_count", res.DocCount),
		}
		for reason, n := range res.Skipped {
			fields = append(fields, zap.Int("skipped_"+string(reason), n))
		}
		log.Info("indexing finished", fields...)
		for _, f := range res.Failures {
			log.Warn("document rejected", zap.String("reason", f))
		}
	}
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}
