package adapter

import (
	"context"
	"fmt"
	"net/url"

	"auctionhub/internal/pkg/httpclient"
)

const (
	DefaultInventoryService = "inventory-service"
	InventoryCheckPath      = "/check_stock"
)

// stockResponse 是库存服务 /check_stock 的响应体
type stockResponse struct {
	ProductID string `json:"productId"`
	Available bool   `json:"available"`
}

// InventoryHTTPAdapter 通过库存服务实现 port.StockCheck。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	service string
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器，service 为空时使用默认服务名。
func NewInventoryHTTPAdapter(client *httpclient.Client, service string) *InventoryHTTPAdapter {
	if service == "" {
		service = DefaultInventoryService
	}
	return &InventoryHTTPAdapter{client: client, service: service}
}

// IsAvailable 调用库存服务查询商品是否可售，任何调用失败都以 error 返回
func (a *InventoryHTTPAdapter) IsAvailable(ctx context.Context, productID string) (bool, error) {
	params := url.Values{}
	params.Set("productId", productID)

	var resp stockResponse
	if err := a.client.CallService(ctx, a.service, InventoryCheckPath, params, &resp); err != nil {
		return false, fmt.Errorf("check stock of %s: %w", productID, err)
	}
	return resp.Available, nil
}
