package port

import (
	"context"

	"auctionhub/internal/service/auction/domain"
)

// NotificationSink 是赢家通知的出站端口。
// 调用方不关心投递结果：失败只记录日志，不会回滚拍卖终态。
type NotificationSink interface {
	WinnerDeclared(ctx context.Context, event domain.WinnerDeclared) error
}
