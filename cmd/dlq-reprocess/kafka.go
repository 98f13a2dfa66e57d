package main

import (
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/bakery/internal/messaging/kafka"
)

const clientID = "bakery-dlq-reprocess"

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// saramaConsumer приводит sarama.Consumer к partitionConsumerSource.
type saramaConsumer struct {
	sarama.Consumer
}

func (c saramaConsumer) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return c.Consumer.ConsumePartition(topic, partition, offset)
}

// dependencies — подключения к Kafka на время одного запуска.
type dependencies struct {
	offsets  offsetClient
	consumer partitionConsumerSource
	producer sarama.SyncProducer
}

func (d *dependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}
	if d.consumer != nil {
		if err := d.consumer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka consumer")
		}
	}
	if d.offsets != nil {
		if err := d.offsets.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka client")
		}
	}
}

// connect подключается к Kafka. Producer создаётся только в режиме execute.
var connect = func(cfg config) (*dependencies, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.ClientID = clientID
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	deps := &dependencies{offsets: client, consumer: saramaConsumer{consumer}}
	if !cfg.execute {
		return deps, nil
	}

	producerConfig := kafka.DefaultProducerConfig()
	producerConfig.ClientID = clientID
	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig.Sarama())
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	deps.producer = producer
	return deps, nil
}
