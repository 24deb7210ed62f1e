package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/service"
)

const (
	TopicSuffixCreated = ".created"
	TopicSuffixDeleted = ".deleted"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewReader builds a consumer-group reader over topics.
func NewReader(brokers []string, groupID string, topics []string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
	})
}

// RunConsumer reads post events until ctx is cancelled. Each message is
// handled and then committed, so a crash replays at most the message in
// flight. Messages that cannot be handled are logged and committed.
func RunConsumer(ctx context.Context, r MessageReader, postSvc service.PostServicer, log *zap.Logger) {
	defer r.Close()
	log.Info("kafka consumer started")

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("kafka consumer stopping")
				return
			}
			log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		Dispatch(ctx, msg, postSvc, log)

		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Warn("kafka commit failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// Dispatch routes msg to a handler by topic suffix.
func Dispatch(ctx context.Context, msg kafka.Message, postSvc service.PostServicer, log *zap.Logger) {
	log = log.With(zap.String("topic", msg.Topic), zap.Int64("offset", msg.Offset))

	var err error
	switch {
	case strings.HasSuffix(msg.Topic, TopicSuffixCreated):
		err = HandlePostCreated(ctx, msg, postSvc)
	case strings.HasSuffix(msg.Topic, TopicSuffixDeleted):
		err = HandlePostDeleted(ctx, msg, postSvc)
	default:
		log.Warn("kafka: unknown topic, skipping")
		return
	}
	if err != nil {
		log.Error("kafka: event not applied", zap.Error(err))
		return
	}
	log.Debug("kafka: event applied")
}
