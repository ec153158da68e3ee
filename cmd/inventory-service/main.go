// cmd/inventory-service/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"auctionhub/internal/pkg/bootstrap"
	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/redis"
	"auctionhub/internal/service/auction/infrastructure/rule"
)

const (
	serviceName = "inventory-service"
	servicePort = 8082
	defaultRule = `listing.in_stock && (!listing.manage_stock || listing.stock_quantity > 0)`
)

var tracer = otel.Tracer(serviceName)

func main() {
	configPath := flag.String("config", getEnv("AUCTION_CONFIG", "configs/auction.yaml"), "path to the yaml config")
	flag.Parse()

	if _, err := bootstrap.Init(*configPath); err != nil {
		logger.Base().Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) (func(context.Context), error) {
			cfg := appCtx.Config

			var source rule.FactsSource = rule.NewMemoryFacts()
			cleanup := func(context.Context) {}
			if cfg.Auction.StockFacts == "redis" {
				client, err := redis.NewClient(cfg.Infra.Redis.Addrs)
				if err != nil {
					return nil, err
				}
				source = rule.NewRedisFacts(client)
				cleanup = func(context.Context) { _ = client.Close() }
			}

			expr := strings.TrimSpace(cfg.Auction.StockRule)
			if expr == "" {
				expr = defaultRule
			}
			stockRule, err := rule.NewCELStockRule(expr, source)
			if err != nil {
				cleanup(appCtx.Ctx)
				return nil, err
			}

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.HandleFunc("/check_stock", checkStockHandler(source, stockRule))
			return cleanup, nil
		},
	})
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Available bool   `json:"available"`
}

// checkStockHandler 没有库存记录的商品视为不限量，有记录的交给规则判断
func checkStockHandler(source rule.FactsSource, stockRule *rule.CELStockRule) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, "inventory-service.CheckStock")
		defer span.End()

		productID := strings.TrimSpace(r.URL.Query().Get("productId"))
		if productID == "" {
			http.Error(w, "productId is required", http.StatusBadRequest)
			return
		}
		span.SetAttributes(attribute.String("auction.product_id", productID))

		facts, found, err := source.Facts(ctx, productID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Ctx(ctx).Error().Err(err).Str("product_id", productID).Msg("failed to load stock facts")
			http.Error(w, "inventory unavailable", http.StatusInternalServerError)
			return
		}

		available := true
		if found {
			if available, err = stockRule.Evaluate(ctx, facts); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				http.Error(w, "inventory unavailable", http.StatusInternalServerError)
				return
			}
		}
		span.SetAttributes(attribute.Bool("stock.available", available))
		logger.Ctx(ctx).Debug().Str("product_id", productID).Bool("available", available).Msg("stock check")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stockResponse{ProductID: productID, Available: available})
	}
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
