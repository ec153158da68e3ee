// cmd/auction-finalizer/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"auctionhub/internal/pkg/bootstrap"
	"auctionhub/internal/pkg/cronrunner"
	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/mq"
	"auctionhub/internal/service/auction"
	"auctionhub/internal/service/auction/application"
	"auctionhub/internal/service/auction/infrastructure/adapter"
)

const (
	serviceName = "auction-finalizer"
	servicePort = 8091
)

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
			components, err := auction.Build(appCtx.Ctx, auction.Options{
				Config:     cfg,
				Tracer:     otel.Tracer(serviceName),
				Registerer: prometheus.DefaultRegisterer,
			})
			if err != nil {
				return nil, err
			}

			writer := mq.NewKafkaWriter(cfg.KafkaBrokers(), cfg.Infra.Kafka.WinnerTopic)
			sink := adapter.NewNotificationKafkaAdapter(writer)
			finalizer := components.NewFinalizer(sink, cfg.Auction.Finalizer)

			runner := cronrunner.New(appCtx.Ctx)
			if _, err := runner.Add(cfg.Auction.Finalizer.Schedule, func(ctx context.Context) {
				_, _ = finalizer.ProcessEnded(ctx)
			}); err != nil {
				_ = sink.Close()
				_ = components.Close()
				return nil, err
			}

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			// 手动触发一次扫描，便于运维补跑
			appCtx.Mux.HandleFunc("/finalizer/sweep", sweepHandler(finalizer))

			runner.Start()
			return func(ctx context.Context) {
				runner.Stop()
				if err := sink.Close(); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("error closing kafka writer")
				}
				if err := components.Close(); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("error closing auction components")
				}
			}, nil
		},
	})
}

type sweeper interface {
	ProcessEnded(ctx context.Context) (application.SweepReport, error)
}

func sweepHandler(f sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		report, err := f.ProcessEnded(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
