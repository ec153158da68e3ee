// cmd/auction-service/main.go
package main

import (
	"context"
	"flag"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"auctionhub/internal/pkg/bootstrap"
	"auctionhub/internal/pkg/cronrunner"
	"auctionhub/internal/pkg/httpclient"
	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/mq"
	"auctionhub/internal/service/auction"
	"auctionhub/internal/service/auction/infrastructure/adapter"
	"auctionhub/internal/service/auction/interfaces"
)

const serviceName = "auction-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	configPath := flag.String("config", getEnv("AUCTION_CONFIG", "configs/auction.yaml"), "path to the yaml config")
	flag.Parse()

	if _, err := bootstrap.Init(*configPath); err != nil {
		logger.Base().Fatal().Err(err).Msg("failed to load config")
	}

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) (func(context.Context), error) {
			tracer := otel.Tracer(serviceName)

			// 启用 nacos 时通过服务发现找到库存服务
			var resolver httpclient.Resolver
			if appCtx.Nacos != nil {
				resolver = appCtx.Nacos
			}

			components, err := auction.Build(appCtx.Ctx, auction.Options{
				Config:     appCtx.Config,
				Tracer:     tracer,
				Resolver:   resolver,
				Registerer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return nil, err
			}

			handler := interfaces.NewAuctionHandler(components.NewBidService())
			handler.RegisterRoutes(appCtx.Mux)

			var runner *cronrunner.Runner
			var sink *adapter.NotificationKafkaAdapter
			if fc := appCtx.Config.Auction.Finalizer; fc.Embedded {
				sink = adapter.NewNotificationKafkaAdapter(
					mq.NewKafkaWriter(appCtx.Config.KafkaBrokers(), appCtx.Config.Infra.Kafka.WinnerTopic))
				finalizer := components.NewFinalizer(sink, fc)

				runner = cronrunner.New(appCtx.Ctx)
				if _, err := runner.Add(fc.Schedule, func(ctx context.Context) {
					_, _ = finalizer.ProcessEnded(ctx)
				}); err != nil {
					_ = sink.Close()
					_ = components.Close()
					return nil, err
				}
				runner.Start()
			}

			return func(ctx context.Context) {
				log := logger.Ctx(ctx)
				if runner != nil {
					runner.Stop()
				}
				if sink != nil {
					if err := sink.Close(); err != nil {
						log.Error().Err(err).Msg("error closing kafka writer")
					}
				}
				if err := components.Close(); err != nil {
					log.Error().Err(err).Msg("error closing auction components")
				}
			}, nil
		},
	})
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
