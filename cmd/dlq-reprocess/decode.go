package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/bakery/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/bakery/internal/service/outbox"
)

// errNotDeadLetter помечает сообщения DLQ, которые не похожи на сообщения outbox витрины.
var errNotDeadLetter = errors.New("message is not an outbox dead letter")

// decodeDeadLetter разбирает сообщение DLQ: конверт outbox, внутри которого лежит DeadLetter.
// Пустые идентификаторы берутся из конверта.
func decodeDeadLetter(value []byte) (outbox.DeadLetter, error) {
	envelope, err := kafka.DecodeEnvelope(value)
	if err != nil {
		return outbox.DeadLetter{}, fmt.Errorf("%w: %v", errNotDeadLetter, err)
	}

	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return outbox.DeadLetter{}, fmt.Errorf("%w: %v", errNotDeadLetter, err)
	}
	if len(letter.Payload) == 0 || string(letter.Payload) == "null" {
		return outbox.DeadLetter{}, fmt.Errorf("%w: original payload is missing", errNotDeadLetter)
	}
	if letter.OutboxID == "" {
		letter.OutboxID = envelope.ID
	}
	if letter.AggregateID == "" {
		letter.AggregateID = envelope.AggregateID
	}
	if letter.AggregateType == "" {
		letter.AggregateType = envelope.AggregateType
	}
	if letter.EventType == "" {
		letter.EventType = envelope.EventType
	}
	return letter, nil
}

func headerValue(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}
