package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/segmentio/kafka-go"

	"github.com/openprocurement/auction-worker/internal/config"
	"github.com/openprocurement/auction-worker/internal/domain"
)

// KafkaJournalPublisher ships auction lifecycle events to the operations
// journal topic. Publishing is best-effort: callers log failures and go on.
type KafkaJournalPublisher struct {
	writer  *kafka.Writer
	topic   string
	eventID func() string
}

func NewKafkaJournalPublisher(cfg *config.WorkerConfig) (*KafkaJournalPublisher, error) {
	genID, err := nanoid.Standard(21)
	if err != nil {
		return nil, err
	}

	return &KafkaJournalPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaService.Host + ":" + cfg.KafkaService.Port),
			Balancer: &kafka.LeastBytes{},
		},
		topic:   cfg.KafkaService.Topic,
		eventID: genID,
	}, nil
}

func (p *KafkaJournalPublisher) Publish(event domain.JournalEvent) error {
	if event.EventID == "" {
		event.EventID = p.eventID()
	}
	if event.Time == "" {
		event.Time = time.Now().UTC().Format(time.RFC3339)
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AuctionID),
		Value: value,
		Time:  time.Now(),
		Topic: p.topic,
	})
}

func (p *KafkaJournalPublisher) Close() error {
	return p.writer.Close()
}
