// Package auction 按配置组装拍卖引擎的存储、锁、库存校验和应用服务，
// 供 auction-service 和 auction-finalizer 两个进程共用。
package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"auctionhub/internal/pkg/bootstrap"
	"auctionhub/internal/pkg/database"
	"auctionhub/internal/pkg/httpclient"
	"auctionhub/internal/pkg/logger"
	"auctionhub/internal/pkg/redis"
	"auctionhub/internal/pkg/zookeeper"
	"auctionhub/internal/service/auction/application"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/domain/port"
	"auctionhub/internal/service/auction/infrastructure"
	"auctionhub/internal/service/auction/infrastructure/adapter"
	"auctionhub/internal/service/auction/infrastructure/lock"
	"auctionhub/internal/service/auction/infrastructure/rule"
)

// Options 是组装所需的外部依赖
type Options struct {
	Config     *bootstrap.Config
	Tracer     trace.Tracer
	Resolver   httpclient.Resolver   // stock_backend=http 时使用，为 nil 则直连 infra.inventory.url
	Registerer prometheus.Registerer // 为 nil 时不收集指标
}

// Components 是组装好的出站适配器
type Components struct {
	Configs port.ConfigProvider
	Catalog port.AuctionCatalog
	Ledger  domain.Ledger
	Finals  domain.FinalizationStore
	States  domain.RuntimeStateStore
	Locker  port.ProductLocker
	Stock   port.StockCheck // stock_backend=none 时为 nil
	Metrics *application.Metrics

	// 以下仅在对应后端为 memory 时非空，用于初始化数据
	MemoryCatalog *infrastructure.MemoryAuctionCatalog
	MemoryFacts   *rule.MemoryFacts

	tracer  trace.Tracer
	closers []func() error
}

// Build 按 cfg.Auction 中的后端选择创建各个适配器，失败时释放已经创建的资源
func Build(ctx context.Context, opts Options) (_ *Components, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = bootstrap.GetCurrentConfig()
	}
	c := &Components{tracer: opts.Tracer}
	if opts.Registerer != nil {
		c.Metrics = application.NewMetrics(opts.Registerer)
	}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	resolveOpts := domain.ResolveOptions{SiteLocation: cfg.Location()}
	if err = c.buildStores(cfg, resolveOpts); err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	getRedis := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		client, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		redisClient = client
		c.closers = append(c.closers, client.Close)
		return client, nil
	}

	if err = c.buildState(cfg, getRedis); err != nil {
		return nil, err
	}
	if err = c.buildLocker(cfg, getRedis); err != nil {
		return nil, err
	}
	if err = c.buildStock(cfg, opts, getRedis); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("store", cfg.Auction.StoreBackend).
		Str("lock", cfg.Auction.LockBackend).
		Str("state", cfg.Auction.StateBackend).
		Str("stock", cfg.Auction.StockBackend).
		Msg("✅ auction components wired")
	return c, nil
}

func (c *Components) buildStores(cfg *bootstrap.Config, resolveOpts domain.ResolveOptions) error {
	switch cfg.Auction.StoreBackend {
	case "memory":
		finals := infrastructure.NewMemoryFinalizationStore()
		catalog := infrastructure.NewMemoryAuctionCatalog(resolveOpts, finals)
		c.Ledger = infrastructure.NewMemoryLedger()
		c.Finals = finals
		c.Configs = catalog
		c.Catalog = catalog
		c.MemoryCatalog = catalog
	case "mysql":
		db, err := database.Open(cfg.Infra.MySQL, infrastructure.Models()...)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, sqlDB.Close)
		}
		catalog := infrastructure.NewGormAuctionCatalog(db, resolveOpts)
		c.Ledger = infrastructure.NewGormLedger(db)
		c.Finals = infrastructure.NewGormFinalizationStore(db)
		c.Configs = catalog
		c.Catalog = catalog
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Auction.StoreBackend)
	}
	return nil
}

func (c *Components) buildState(cfg *bootstrap.Config, getRedis func() (*redis.Client, error)) error {
	switch cfg.Auction.StateBackend {
	case "memory":
		c.States = infrastructure.NewMemoryStateStore()
	case "redis":
		client, err := getRedis()
		if err != nil {
			return err
		}
		c.States = infrastructure.NewRedisStateStore(client)
	default:
		return fmt.Errorf("unknown state backend %q", cfg.Auction.StateBackend)
	}
	return nil
}

func (c *Components) buildLocker(cfg *bootstrap.Config, getRedis func() (*redis.Client, error)) error {
	a := cfg.Auction
	switch a.LockBackend {
	case "memory":
		c.Locker = lock.NewMemoryLocker(a.LockWait)
	case "redis":
		client, err := getRedis()
		if err != nil {
			return err
		}
		locker, err := lock.NewRedisLocker(client, a.LockTTL, a.LockWait)
		if err != nil {
			return err
		}
		c.Locker = locker
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return fmt.Errorf("connect zookeeper: %w", err)
		}
		c.closers = append(c.closers, func() error { conn.Close(); return nil })
		c.Locker = lock.NewZKLocker(conn, a.LockWait)
	default:
		return fmt.Errorf("unknown lock backend %q", a.LockBackend)
	}
	return nil
}

func (c *Components) buildStock(cfg *bootstrap.Config, opts Options, getRedis func() (*redis.Client, error)) error {
	a := cfg.Auction
	switch a.StockBackend {
	case "none", "":
		return nil
	case "rule":
		var source rule.FactsSource
		if a.StockFacts == "memory" {
			c.MemoryFacts = rule.NewMemoryFacts()
			source = c.MemoryFacts
		} else {
			client, err := getRedis()
			if err != nil {
				return err
			}
			source = rule.NewRedisFacts(client)
		}
		r, err := rule.NewCELStockRule(a.StockRule, source)
		if err != nil {
			return err
		}
		c.Stock = r
	case "http":
		resolver := opts.Resolver
		if resolver == nil {
			resolver = httpclient.StaticResolver(strings.TrimSpace(cfg.Infra.Inventory.URL))
		}
		tracer := opts.Tracer
		if tracer == nil {
			return errors.New("http stock backend needs a tracer")
		}
		client := httpclient.NewClient(tracer, resolver)
		c.Stock = adapter.NewInventoryHTTPAdapter(client, cfg.Infra.Inventory.Service)
	default:
		return fmt.Errorf("unknown stock backend %q", a.StockBackend)
	}
	return nil
}

// NewBidService 创建出价用例服务
func (c *Components) NewBidService(opts ...application.ServiceOption) *application.BidApplicationService {
	base := []application.ServiceOption{
		application.WithMetrics(c.Metrics),
		application.WithFinalizationStore(c.Finals),
	}
	return application.NewBidApplicationService(c.tracer, c.Locker, c.Configs, c.Stock, c.Ledger, c.States, append(base, opts...)...)
}

// NewFinalizer 创建结束处理器
func (c *Components) NewFinalizer(notifier port.NotificationSink, cfg bootstrap.FinalizerConfig, opts ...application.FinalizerOption) *application.Finalizer {
	base := []application.FinalizerOption{application.WithFinalizerMetrics(c.Metrics)}
	return application.NewFinalizer(c.tracer, c.Locker, c.Configs, c.Catalog, c.Ledger, c.Finals, notifier,
		application.FinalizerConfig{BatchSize: cfg.BatchSize, Parallelism: cfg.Parallelism},
		append(base, opts...)...)
}

// Close 按创建的相反顺序释放连接
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
