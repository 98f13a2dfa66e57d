package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// ProducerConfig — настройки sync producer, общие для сервера витрины и утилит.
type ProducerConfig struct {
	ClientID    string
	MaxRetries  int
	Compression sarama.CompressionCodec
}

// DefaultProducerConfig возвращает настройки сервера витрины.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		ClientID:    "bakery-server",
		MaxRetries:  5,
		Compression: sarama.CompressionSnappy,
	}
}

// Sarama собирает конфигурацию идемпотентного producer: acks от всех ISR и один запрос в полёте.
func (c ProducerConfig) Sarama() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = c.ClientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = c.MaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = c.Compression
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// Producer публикует JSON-события витрины в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer подключается к brokers.
func NewProducer(brokers []string, cfg ProducerConfig, logger *log.Entry) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, cfg.Sarama())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer %s: %w", cfg.ClientID, err)
	}
	return NewProducerFromSync(producer, logger), nil
}

// NewProducerFromSync оборачивает готовый sarama.SyncProducer.
func NewProducerFromSync(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, logger: logger}
}

// PublishEvent кодирует event в JSON и синхронно отправляет его. key задаёт партицию:
// события одного заказа приходят подписчикам по порядку.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any, headers map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   recordHeaders(headers),
		Timestamp: time.Now(),
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(fields).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	fields["partition"] = partition
	fields["offset"] = offset
	p.logger.WithFields(fields).Debug("event sent to kafka")
	return nil
}

// recordHeaders раскладывает заголовки в порядке ключей.
func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]sarama.RecordHeader, 0, len(names))
	for _, name := range names {
		records = append(records, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	return records
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
