// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata" // 容器镜像里可能没有时区数据库

	"gopkg.in/yaml.v3"

	"auctionhub/internal/pkg/database"
)

// Config 对应 configs/auction.yaml
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Auction AuctionConfig `yaml:"auction"`
}

type AppConfig struct {
	Name         string `yaml:"name"`
	Port         int    `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	SiteTimezone string `yaml:"site_timezone"`
}

type InfraConfig struct {
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	MySQL database.Config `yaml:"mysql"`
	Redis struct {
		Addrs string `yaml:"addrs"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers     string `yaml:"brokers"`
		WinnerTopic string `yaml:"winner_topic"`
	} `yaml:"kafka"`
	Zookeeper struct {
		Servers        string        `yaml:"servers"`
		SessionTimeout time.Duration `yaml:"session_timeout"`
	} `yaml:"zookeeper"`
	Nacos struct {
		Enabled     bool   `yaml:"enabled"`
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
	Inventory struct {
		Service string `yaml:"service"` // nacos 服务名
		URL     string `yaml:"url"`     // 未启用 nacos 时直连
	} `yaml:"inventory"`
}

type AuctionConfig struct {
	StoreBackend string          `yaml:"store_backend"` // mysql | memory
	LockBackend  string          `yaml:"lock_backend"`
	LockTTL      time.Duration   `yaml:"lock_ttl"`
	LockWait     time.Duration   `yaml:"lock_wait"`
	StateBackend string          `yaml:"state_backend"`
	StockBackend string          `yaml:"stock_backend"`
	StockRule    string          `yaml:"stock_rule"`
	StockFacts   string          `yaml:"stock_facts"` // memory | redis，仅 stock_backend=rule 时使用
	Finalizer    FinalizerConfig `yaml:"finalizer"`
}

type FinalizerConfig struct {
	BatchSize   int    `yaml:"batch_size"`
	Parallelism int    `yaml:"parallelism"`
	Schedule    string `yaml:"schedule"`
	// Embedded 为 true 时 auction-service 在进程内运行结束扫描，memory 存储只能这样用
	Embedded bool `yaml:"embedded"`
}

var current atomic.Pointer[Config]

// Init 读取配置文件并应用环境变量覆盖，path 为空时只使用默认值和环境变量
func Init(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回最近一次 Init 的结果，尚未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return defaultConfig()
}

// Location 返回站点时区，无法识别时回退为 UTC
func (c *Config) Location() *time.Location {
	if c.App.SiteTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.App.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KafkaBrokers 拆分逗号分隔的 broker 列表
func (c *Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Infra.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App = AppConfig{Name: "auction-service", Port: 8090, LogLevel: "info"}
	cfg.Infra.MySQL = database.Config{Host: "localhost", Port: 3306, User: "root", Database: "auction"}
	cfg.Infra.Redis.Addrs = "localhost:6379"
	cfg.Infra.Kafka.Brokers = "localhost:9092"
	cfg.Infra.Kafka.WinnerTopic = "auction-winners"
	cfg.Infra.Zookeeper.Servers = "localhost:2181"
	cfg.Infra.Zookeeper.SessionTimeout = 10 * time.Second
	cfg.Infra.Nacos.ServerAddrs = "localhost:8848"
	cfg.Infra.Nacos.Group = "DEFAULT_GROUP"
	cfg.Infra.Inventory.Service = "inventory-service"
	cfg.Auction = AuctionConfig{
		StoreBackend: "mysql",
		LockBackend:  "memory",
		LockTTL:      5 * time.Second,
		LockWait:     3 * time.Second,
		StateBackend: "memory",
		StockBackend: "none",
		StockFacts:   "redis",
		Finalizer:    FinalizerConfig{BatchSize: 50, Parallelism: 4, Schedule: "@every 30s"},
	}
	return cfg
}

// applyEnvOverrides 让部署环境覆盖基础设施地址
func applyEnvOverrides(cfg *Config) {
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.Zookeeper.Servers = getEnv("ZK_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
}

func (c *Config) validate() error {
	switch c.Auction.StoreBackend {
	case "mysql", "memory":
	default:
		return fmt.Errorf("unknown auction.store_backend %q", c.Auction.StoreBackend)
	}
	switch c.Auction.LockBackend {
	case "memory", "redis", "zookeeper":
	default:
		return fmt.Errorf("unknown auction.lock_backend %q", c.Auction.LockBackend)
	}
	switch c.Auction.StateBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown auction.state_backend %q", c.Auction.StateBackend)
	}
	switch c.Auction.StockBackend {
	case "none", "rule", "http":
	default:
		return fmt.Errorf("unknown auction.stock_backend %q", c.Auction.StockBackend)
	}
	if c.Auction.StockBackend == "rule" {
		if strings.TrimSpace(c.Auction.StockRule) == "" {
			return fmt.Errorf("auction.stock_rule is required when stock_backend is rule")
		}
		switch c.Auction.StockFacts {
		case "memory", "redis":
		default:
			return fmt.Errorf("unknown auction.stock_facts %q", c.Auction.StockFacts)
		}
	}
	return nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
