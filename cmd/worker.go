package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/kafka"
	"github.com/trashposts/post-search/internal/service"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run Kafka consumer (apply post created/deleted events). Deploy separately from api.",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if len(cfg.KafkaBrokers) == 0 || len(cfg.KafkaTopics) == 0 {
		return fmt.Errorf("worker requires KAFKA_BROKERS and KAFKA_TOPICS")
	}

	postSvc, err := service.NewPostService(cfg, log.Named("service"))
	if err != nil {
		return fmt.Errorf("post service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker starting",
		zap.String("group", cfg.KafkaGroupID),
		zap.Strings("topics", cfg.KafkaTopics))
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopics)
	kafka.RunConsumer(ctx, reader, postSvc, log.Named("kafka"))
	log.Info("worker stopped")
	return nil
}
