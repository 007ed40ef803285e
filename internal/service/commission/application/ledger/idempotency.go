package ledger

import (
	"errors"

	"nexus-commission/internal/service/commission/domain"
)

// IdempotencyHandler 提前发现重复订单，省去后续计算。
// 真正的保证来自 order_id 唯一约束，并发重复投递时由 RecordHandler 的插入失败兜底。
type IdempotencyHandler struct {
	NextHandler
}

func (h *IdempotencyHandler) Handle(attrCtx *AttributionContext) error {
	_, err := attrCtx.Tx.Attributions().FindByOrderID(attrCtx.Ctx, attrCtx.Order.OrderID)
	switch {
	case err == nil:
		return domain.ErrAlreadyAttributed
	case errors.Is(err, domain.ErrAttributionNotFound):
		return h.executeNext(attrCtx)
	default:
		return err
	}
}
