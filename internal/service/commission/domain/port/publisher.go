package port

import (
	"context"

	"nexus-commission/internal/service/commission/domain"
)

// EventPublisher 在事务提交后接收佣金事件，失败不影响已提交的结果
type EventPublisher interface {
	Publish(ctx context.Context, event domain.CommissionEvent) error
}

// ContactSink 是外部 CRM 的联系人同步出口，即发即忘
type ContactSink interface {
	SyncContact(ctx context.Context, contact domain.ContactRecord) error
}

// AttributionMarker 记录已归因的订单号，消费者据此提前丢弃重复投递
type AttributionMarker interface {
	MarkAttributed(ctx context.Context, orderID string) error
	IsAttributed(ctx context.Context, orderID string) (bool, error)
}
