package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/staywatch/room-deals/backend/internal/cache"
	"github.com/staywatch/room-deals/backend/internal/config"
	"github.com/staywatch/room-deals/backend/internal/dedupe"
	"github.com/staywatch/room-deals/backend/internal/logger"
	"github.com/staywatch/room-deals/backend/internal/models"
	"github.com/staywatch/room-deals/backend/internal/pipeline"
	"github.com/staywatch/room-deals/backend/internal/processing"
	"github.com/staywatch/room-deals/backend/internal/repair"
)

// scrapeEnvelope is one message from the scraping collaborator: the stay being
// re-checked, what the traveler paid, and the raw blob the scrape produced.
type scrapeEnvelope struct {
	Hotel         string  `json:"hotel"`
	CheckIn       string  `json:"checkIn"`
	CheckOut      string  `json:"checkOut"`
	RoomType      string  `json:"roomType"`
	OriginalPrice float64 `json:"originalPrice"`
	Payload       string  `json:"payload"`
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	store := newStore(cfg.Common)
	runner := pipeline.NewRunner(store, log)
	seen := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, runner, seen, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			dlqMsg := kafka.Message{
				Value: msg.Value,
				Headers: append(msg.Headers,
					kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
					kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
					kafka.Header{Key: "error", Value: []byte(err.Error())},
					kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
				),
			}

			// Retry DLQ write with exponential backoff
			dlqSuccess := false
			for attempt := 0; attempt < 5; attempt++ {
				if dlqErr := dlqWriter.WriteMessages(ctx, dlqMsg); dlqErr == nil {
					dlqSuccess = true
					log.Info("message sent to DLQ",
						slog.Int("partition", msg.Partition),
						slog.Int64("offset", msg.Offset),
						slog.Int("attempt", attempt+1),
					)
					break
				} else {
					backoff := time.Duration(1<<uint(attempt)) * time.Second
					log.Warn("DLQ write failed, retrying",
						slog.Any("err", dlqErr),
						slog.Int("attempt", attempt+1),
						slog.Duration("backoff", backoff),
					)
					select {
					case <-time.After(backoff):
						// Continue to next attempt
					case <-ctx.Done():
						log.Info("context canceled during DLQ retry")
						return
					}
				}
			}

			// Only commit if DLQ write succeeded; otherwise skip commit and reprocess on restart
			if dlqSuccess {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit failed message to dlq", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func processMessage(ctx context.Context, log *slog.Logger, runner *pipeline.Runner, seen *dedupe.Cache, msg kafka.Message) error {
	var envelope scrapeEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return err
	}

	stay := models.Stay{
		Hotel:    strings.TrimSpace(envelope.Hotel),
		CheckIn:  strings.TrimSpace(envelope.CheckIn),
		CheckOut: strings.TrimSpace(envelope.CheckOut),
	}
	if stay.Hotel == "" || stay.CheckIn == "" || stay.CheckOut == "" {
		return errors.New("envelope missing stay fields")
	}
	if envelope.OriginalPrice <= 0 {
		return errors.New("envelope missing original price")
	}

	fp := processing.Fingerprint(stay.CacheKey(), envelope.Payload)
	if seen.Seen(fp) {
		log.Debug("duplicate payload", slog.String("fingerprint", fp))
		return nil
	}

	runID := uuid.NewString()
	result, err := runner.RunRaw(ctx, pipeline.Request{
		Stay:     stay,
		RoomType: envelope.RoomType,
		Baseline: envelope.OriginalPrice,
	}, envelope.Payload)
	if err != nil {
		// Malformed payloads and marker-free fragments are hard failures for
		// this run; the cache keeps whatever the last good run stored.
		if errors.Is(err, repair.ErrMalformedPayload) || errors.Is(err, repair.ErrNoValidCandidates) {
			return fmt.Errorf("run %s: %w", runID, err)
		}
		return err
	}

	seen.Record(fp)
	log.Info("price check completed",
		slog.String("run_id", runID),
		slog.String("hotel", stay.Hotel),
		slog.String("outcome", string(result.Outcome)),
		slog.Int("offers", len(result.Offers)),
	)
	return nil
}

func newStore(cfg config.Common) cache.Store {
	if cfg.CacheBackend == config.CacheRedis {
		return cache.NewRedis(cfg.RedisAddr, cfg.RedisPrefix, cfg.CacheTTL)
	}
	return cache.NewMemory(cfg.CacheCapacity, cfg.CacheTTL)
}
