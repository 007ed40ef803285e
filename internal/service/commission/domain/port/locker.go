package port

import "context"

// PartnerLocker 提供跨实例的合作伙伴级互斥，数据库行锁仍是最终保证
type PartnerLocker interface {
	Lock(ctx context.Context, partnerID string) (unlock func(), err error)
}
