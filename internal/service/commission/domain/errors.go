package domain

import "errors"

// Conflict
var ErrAlreadyAttributed = errors.New("order already attributed")

// Validation: 在任何写入之前拒绝
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrRateOutOfRange      = errors.New("commission rate must be within [0, 100]")
	ErrInvalidScope        = errors.New("invalid rule scope")
	ErrInvalidTierSchedule = errors.New("invalid tier schedule")
	ErrPartnerInactive     = errors.New("partner is inactive")
)

// NotFound
var (
	ErrPartnerNotFound     = errors.New("partner not found")
	ErrRuleNotFound        = errors.New("commission rule not found")
	ErrAttributionNotFound = errors.New("attribution not found")
	ErrPayoutNotFound      = errors.New("payout not found")
)

// Inconsistent-state: 说明上游工作流存在问题，必须暴露给操作员
var (
	ErrIllegalTransition   = errors.New("illegal attribution status transition")
	ErrPayoutNotPending    = errors.New("payout is not pending")
	ErrPayoutNotReleasable = errors.New("payout is not releasable")
	ErrClaimConflict       = errors.New("attribution claim conflict")
)
