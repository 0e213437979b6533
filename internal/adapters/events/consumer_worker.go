package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/analysis-service/internal/application"
)

type Message struct {
	Topic   string
	Payload []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
}

// ConsumerWorker turns upstream platform events into analysis jobs.
type ConsumerWorker struct {
	logger             *slog.Logger
	consumer           Consumer
	service            *application.Service
	interval           time.Duration
	topicVideoUploaded string
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, service *application.Service, interval time.Duration, topicVideoUploaded string) *ConsumerWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if topicVideoUploaded == "" {
		topicVideoUploaded = "video.uploaded"
	}
	return &ConsumerWorker{
		logger: logger, consumer: consumer, service: service, interval: interval,
		topicVideoUploaded: topicVideoUploaded,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, 50)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		switch msg.Topic {
		case w.topicVideoUploaded:
			if err := w.service.HandleVideoUploaded(ctx, msg.Payload); err != nil {
				w.logger.WarnContext(ctx, "failed to handle video.uploaded", "error", err)
			}
		default:
		}
	}
	return nil
}
