package interfaces

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/pkg/mq"
)

const readRetryBackoff = time.Second

// deadLetterReader 是 DLTConsumer 用到的 kafka.Reader 子集
type deadLetterReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

// DLTConsumer 监听死信主题并记录日志，供操作员排查后人工重放
type DLTConsumer struct {
	reader  deadLetterReader
	backoff time.Duration
}

func NewDLTConsumer(reader *kafka.Reader) *DLTConsumer {
	return &DLTConsumer{reader: reader, backoff: readRetryBackoff}
}

func (c *DLTConsumer) Run(ctx context.Context) error {
	topic := c.reader.Config().Topic
	logger.Ctx(ctx).Info().Str("topic", topic).Msg("✅ DLT consumer started")
	defer func() {
		c.reader.Close()
		logger.Ctx(ctx).Info().Str("topic", topic).Msg("🛑 DLT consumer stopped")
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Warn().Err(err).Msg("Could not read dead letter, retrying")
			if !waitRetry(ctx, c.backoff) {
				return nil
			}
			continue
		}
		logDeadLetter(ctx, msg)
	}
}

// waitRetry 等待 d 后返回 true；ctx 先结束则返回 false
func waitRetry(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_fqcn", headers[mq.HeaderExceptionFqcn]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 Dead letter order event received")
}
