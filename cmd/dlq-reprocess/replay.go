package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/domain"
	"github.com/vladislavdragonenkov/bakery/internal/messaging/kafka"
)

// replayPublisher повторно публикует восстановленное outbox-сообщение.
type replayPublisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// replayer проходит partitions DLQ по возрастанию номера; limit общий на все partitions.
type replayer struct {
	cfg       config
	offsets   offsetClient
	consumer  partitionConsumerSource
	publisher replayPublisher
	logger    *log.Entry
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	var total replayStats
	if r.offsets == nil || r.consumer == nil {
		return total, errors.New("kafka client and consumer are required")
	}
	if r.cfg.execute && r.publisher == nil {
		return total, errors.New("producer is required in execute mode")
	}
	if r.logger == nil {
		r.logger = log.WithField("component", "dlq-reprocess")
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.WithField("topic", r.cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		budget := r.cfg.limit - total.scanned
		if budget <= 0 {
			break
		}
		stats, err := r.replayPartition(ctx, partition, budget)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// startOffset возвращает первый offset чтения. С fromNewest читаются последние budget
// сообщений, но не раньше oldest.
func startOffset(oldest, newest int64, budget int, fromNewest bool) int64 {
	if !fromNewest {
		return oldest
	}
	return max(newest-int64(budget), oldest)
}

// replayPartition читает partition до offset, который был последним на момент старта.
// Новые сообщения, пришедшие во время чтения, не обрабатываются.
func (r *replayer) replayPartition(ctx context.Context, partition int32, budget int) (replayStats, error) {
	var stats replayStats

	oldest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return stats, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return stats, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, startOffset(oldest, newest, budget, r.cfg.fromNewest))
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			r.logger.WithField("partition", partition).Debug("partition is idle, moving on")
			return stats, nil
		case consumeErr := <-pc.Errors():
			if consumeErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumeErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)
			stats.scanned++

			replayed, err := r.handle(ctx, msg)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.replayed++
			} else {
				stats.skipped++
			}
			if msg.Offset+1 >= newest {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// handle обрабатывает одно сообщение DLQ; false означает, что сообщение пропущено.
func (r *replayer) handle(ctx context.Context, msg *sarama.ConsumerMessage) (bool, error) {
	entry := r.logger.WithFields(log.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	letter, err := decodeDeadLetter(msg.Value)
	if err != nil {
		entry.WithError(err).Warn("skip unsupported dlq message")
		return false, nil
	}
	entry = entry.WithFields(log.Fields{
		"outbox_id":      letter.OutboxID,
		"event_type":     letter.EventType,
		"original_topic": headerValue(msg, kafka.HeaderOriginalTopic),
	})

	if !r.cfg.execute {
		entry.WithField("publish_error", letter.PublishError).Info("dlq replay candidate")
		return true, nil
	}
	if err := r.publisher.Publish(ctx, letter.Message()); err != nil {
		return false, fmt.Errorf("republish outbox message %s: %w", letter.OutboxID, err)
	}
	entry.Info("dlq message replayed")
	return true, nil
}
