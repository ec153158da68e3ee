package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"auctionhub/internal/pkg/mq"
	"auctionhub/internal/service/auction/domain"
)

// DefaultWinnerTopic 是赢家事件的默认 topic
const DefaultWinnerTopic = "auction-winners"

// NotificationKafkaAdapter 实现了 port.NotificationSink 接口。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// WinnerDeclared 以商品 ID 作为消息 key，同一商品的事件落在同一分区
func (a *NotificationKafkaAdapter) WinnerDeclared(ctx context.Context, event domain.WinnerDeclared) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal winner event: %w", err)
	}
	if err := mq.ProduceMessage(ctx, a.writer, []byte(event.ProductID), eventBytes); err != nil {
		return fmt.Errorf("failed to publish winner of %s: %w", event.ProductID, err)
	}
	return nil
}

// Close 关闭底层的 writer（如果它支持关闭）
func (a *NotificationKafkaAdapter) Close() error {
	if c, ok := a.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
