// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/nacos"
	"auctionhub/internal/pkg/tracing"
)

type AppCtx struct {
	Ctx    context.Context // 收到退出信号时取消
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未启用 nacos 时为 nil
	Config *Config
}

// AppInfo 包含了启动一个服务所需的特定信息。
type AppInfo struct {
	ServiceName string
	Port        int // 为 0 时使用配置文件中的端口
	// RegisterHandlers 注册路由并返回关停时需要执行的清理函数
	RegisterHandlers func(appCtx AppCtx) (cleanup func(context.Context), err error)
}

// StartService 封装了所有服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName, cfg.App.LogLevel)
	log := logger.Base()

	port := info.Port
	if port == 0 {
		port = cfg.App.Port
	}

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. Nacos 是可选的，关闭时服务只监听本地端口
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if ip, err = outboundIP(); err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 注册路由
	mux := http.NewServeMux()
	var cleanup func(context.Context)
	if info.RegisterHandlers != nil {
		cleanup, err = info.RegisterHandlers(AppCtx{Ctx: ctx, Mux: mux, Nacos: namingClient, Config: cfg})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to wire service")
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Int("port", port).Msgf("✅ %s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	// 4. 注册到 nacos
	if namingClient != nil {
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	<-ctx.Done()
	log.Info().Msgf("🛑 Shutting down service %s...", info.ServiceName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 按启动的相反顺序清理
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, port); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if cleanup != nil {
		cleanup(shutdownCtx)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// outboundIP 返回本机访问外网时使用的地址，用于服务注册
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("dial udp for local ip: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
