package domain

import (
	"errors"
	"fmt"
)

// RejectionReason 是出价在写入账本之前被拒绝的原因，均为可预期、可恢复的业务结果
type RejectionReason string

const (
	ReasonInvalidProduct        RejectionReason = "invalid_product"
	ReasonProductNotFound       RejectionReason = "product_not_found"
	ReasonAuctionNotEnabled     RejectionReason = "auction_not_enabled"
	ReasonOutOfStock            RejectionReason = "out_of_stock"
	ReasonNotStarted            RejectionReason = "not_started"
	ReasonAlreadyEnded          RejectionReason = "already_ended"
	ReasonMissingBidderIdentity RejectionReason = "missing_bidder_identity"
	ReasonMissingAutoMax        RejectionReason = "missing_auto_max"
	ReasonInvalidAutoMax        RejectionReason = "invalid_auto_max"
	ReasonAutoMaxTooLow         RejectionReason = "auto_max_too_low"
	ReasonBidTooLow             RejectionReason = "bid_too_low"
	ReasonSealedDuplicateBid    RejectionReason = "sealed_duplicate_bid"
)

var (
	// ErrPersistence 标记存储层（账本、状态、锁）失败，调用方应当重试
	ErrPersistence = errors.New("persistence_failed")

	ErrProductNotFound  = errors.New("auction product not found")
	ErrAlreadyFinalized = errors.New("auction already finalized")
	ErrBidNotFound      = errors.New("bid record not found")
	// ErrStatusTransition 出价状态只能从 active 变为 outbid
	ErrStatusTransition = errors.New("invalid bid status transition")
)

// RejectionError 携带拒绝原因和一段给人看的说明
type RejectionError struct {
	Reason RejectionReason
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// Reject 构造一个 RejectionError
func Reject(reason RejectionReason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// RejectionOf 提取错误链中的拒绝原因
func RejectionOf(err error) (RejectionReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// PersistenceFailure 用 ErrPersistence 包装底层存储错误
func PersistenceFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
