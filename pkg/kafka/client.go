// Package kafka provides the ingestion task queue producer and consumer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"linktree-ai-go/internal/config"
	"linktree-ai-go/pkg/log"
	"linktree-ai-go/pkg/tasks"
)

// JobProcessor is implemented by any component able to process an
// ingestion job. It decouples the consumer from the concrete pipeline.
type JobProcessor interface {
	Process(ctx context.Context, job tasks.IngestionJob) error
}

// Producer publishes ingestion jobs to the task topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the configured topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// ProduceJob publishes one ingestion job, keyed by task id so retries
// of the same task land on the same partition.
func (p *Producer) ProduceJob(ctx context.Context, job tasks.IngestionJob) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.TaskID),
		Value: jobBytes,
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer runs the consume loop until the context is cancelled.
// A job that fails is retried by withholding the offset commit; after
// three failures (counted in Redis) the offset is committed to stop the
// retry loop.
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor JobProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to read message from kafka", err)
			break
		}

		var job tasks.IngestionJob
		if err := json.Unmarshal(m.Value, &job); err != nil {
			log.Errorf("failed to parse kafka message: %v, value: %s", err, string(m.Value))
			// Malformed message: commit so it does not block the queue.
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing ingestion job: task=%s tenant=%s chunks=%d", job.TaskID, job.TenantID, len(job.Chunks))
		if err := processor.Process(ctx, job); err != nil {
			log.Errorf("ingestion job failed: task=%s error: %v", job.TaskID, err)

			attemptsKey := fmt.Sprintf("kafka:attempts:%s", job.TaskID)
			attempts, incErr := rdb.Incr(ctx, attemptsKey).Result()
			if incErr != nil {
				// Redis down: withhold the commit and let Kafka redeliver.
				continue
			}
			_ = rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
			if attempts >= 3 {
				log.Errorf("ingestion job failed %d times, committing offset to stop retries: task=%s", attempts, job.TaskID)
				if err := r.CommitMessages(ctx, m); err != nil {
					log.Errorf("failed to commit kafka offset: %v", err)
				}
			}
			continue
		}

		log.Infof("ingestion job completed: task=%s", job.TaskID)
		_ = rdb.Del(ctx, fmt.Sprintf("kafka:attempts:%s", job.TaskID)).Err()
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("failed to commit kafka offset: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("failed to close kafka consumer: %v", err)
	}
}
