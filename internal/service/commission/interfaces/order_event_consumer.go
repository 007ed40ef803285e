package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"nexus-commission/internal/pkg/logger"
	"nexus-commission/internal/pkg/mq"
	"nexus-commission/internal/service/commission/application"
	"nexus-commission/internal/service/commission/domain"
	"nexus-commission/internal/service/commission/domain/port"
)

// Attributor 是消费者驱动的应用服务能力
type Attributor interface {
	Attribute(ctx context.Context, req *application.AttributeRequest) (*application.AttributeResponse, error)
}

// OrderEventConsumer 是一个驱动适配器，监听订单事件并驱动归因。
// 重复订单视为已处理；其余失败转入死信主题，偏移量总是提交。
type OrderEventConsumer struct {
	reader  *kafka.Reader
	dlt     *kafka.Writer
	service Attributor
	marker  port.AttributionMarker
	timeout time.Duration
}

func NewOrderEventConsumer(reader *kafka.Reader, dlt *kafka.Writer, service Attributor, marker port.AttributionMarker, timeout time.Duration) *OrderEventConsumer {
	return &OrderEventConsumer{reader: reader, dlt: dlt, service: service, marker: marker, timeout: timeout}
}

// Run 阻塞直到 ctx 取消
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	topic := c.reader.Config().Topic
	logger.Ctx(ctx).Info().Str("topic", topic).Msg("✅ Order event consumer started")
	defer func() {
		if err := c.reader.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to close order event reader")
		}
		logger.Ctx(ctx).Info().Str("topic", topic).Msg("🛑 Order event consumer stopped")
	}()

	for {
		// 使用 FetchMessage 而不是 ReadMessage，处理完成后再手动提交
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Could not fetch message, retrying")
			if !waitRetry(ctx, readRetryBackoff) {
				return nil
			}
			continue
		}

		msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
		if err := c.handle(msgCtx, msg); err != nil {
			if dltErr := mq.SendToDLT(msgCtx, c.dlt, msg, err); dltErr != nil {
				logger.Ctx(msgCtx).Error().Err(dltErr).Str("key", string(msg.Key)).Msg("Failed to forward message to DLT")
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to commit message")
		}
	}
}

// handle 返回 nil 表示消息已处理（包括重复投递）
func (c *OrderEventConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var req application.AttributeRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return err
	}

	if c.marker != nil {
		seen, err := c.marker.IsAttributed(ctx, domain.NormalizeOrderID(req.OrderID))
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Attribution marker unavailable, falling back to database")
		} else if seen {
			logger.Ctx(ctx).Debug().Str("order_id", req.OrderID).Msg("Dropping redelivered order event")
			return nil
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	_, err := c.service.Attribute(ctx, &req)
	if errors.Is(err, domain.ErrAlreadyAttributed) {
		return nil
	}
	return err
}
