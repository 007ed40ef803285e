package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"nexus-commission/internal/pkg/mq"
	"nexus-commission/internal/service/commission/domain"
)

// KafkaEventPublisher 实现了 port.EventPublisher，以合作伙伴 id 作为消息 key，
// 同一合作伙伴的事件落在同一分区，保持顺序。
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

func NewKafkaEventPublisher(writer *kafka.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.CommissionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal commission event: %w", err)
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(event.PartnerID), payload)
}

// Close 关闭底层的 Kafka writer
func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
