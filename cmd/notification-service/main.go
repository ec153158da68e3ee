// cmd/notification-service/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auctionhub/internal/pkg/bootstrap"
	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/mq"
	"auctionhub/internal/service/auction/domain"
)

const (
	serviceName     = "notification-service"
	servicePort     = 8093
	consumerGroupID = "auction-winner-notification-group"
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
			reader := mq.NewKafkaReader(cfg.KafkaBrokers(), cfg.Infra.Kafka.WinnerTopic, consumerGroupID)

			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				consume(appCtx.Ctx, reader)
			}()

			return func(ctx context.Context) {
				if err := reader.Close(); err != nil {
					logger.Ctx(ctx).Error().Err(err).Msg("error closing kafka reader")
				}
				wg.Wait()
			}, nil
		},
	})
}

// consume 循环消费赢家事件，处理完成后才提交 offset
func consume(ctx context.Context, reader *kafka.Reader) {
	log := logger.Base()
	log.Info().Str("topic", reader.Config().Topic).Msg("✅ notification consumer started")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				log.Info().Msg("🛑 notification consumer stopped")
				return
			}
			log.Error().Err(err).Msg("could not read message")
			continue
		}

		if err := processWinner(msg); err != nil {
			// 无法解析的消息不会因为重试而变好，记录后提交
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("dropping malformed winner event")
		}
		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit offset")
		}
	}
}

// processWinner 处理从 Kafka 收到的单条赢家事件
func processWinner(msg kafka.Message) error {
	// 从消息头中提取追踪上下文，把消费链路接到 finalizer 的 trace 上
	ctx := mq.ExtractTraceContext(context.Background(), msg.Headers)
	ctx, span := tracer.Start(ctx, "notification-service.ProcessWinner",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
			attribute.String("messaging.kafka.message.key", string(msg.Key)),
		),
	)
	defer span.End()

	var event domain.WinnerDeclared
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if event.ProductID == "" || event.Winner.IsZero() {
		err := errors.New("winner event without product or winner")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.String("auction.product_id", event.ProductID),
		attribute.String("auction.event_id", event.EventID),
	)
	logger.Ctx(ctx).Info().
		Str("event_id", event.EventID).
		Str("product_id", event.ProductID).
		Str("winner", event.Winner.Key()).
		Str("amount", event.Amount.String()).
		Time("winning_time", event.WinningTime).
		Msg("📣 dispatching winner notification")
	span.AddEvent("Winner notification dispatched")
	return nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
