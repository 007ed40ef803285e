// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config 是 commission 服务与运维 CLI 共用的配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Auth      AuthConfig      `yaml:"auth"`
	CRM       CRMConfig       `yaml:"crm"`
	Fraud     FraudConfig     `yaml:"fraud"`
	Tiers     []TierConfig    `yaml:"tiers"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Name         string        `yaml:"name"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life"`
}

type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	OrderTopic     string        `yaml:"order_topic"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	DeadLetter     string        `yaml:"dead_letter_topic"`
	EventTopic     string        `yaml:"event_topic"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

type RedisConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type CRMConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// FraudRule 是一条额外的 CEL 欺诈规则，表达式结果为 true 即拒绝
type FraudRule struct {
	Name       string `yaml:"name"`
	Expression string `yaml:"expression"`
}

type FraudConfig struct {
	Rules []FraudRule `yaml:"rules"`
}

// TierConfig 金额与费率都用十进制字符串书写，例如 "10000" 和 "8"
type TierConfig struct {
	Tier        string `yaml:"tier"`
	MinSales    string `yaml:"min_sales"`
	DefaultRate string `yaml:"default_rate"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
	DataID      string `yaml:"data_id"`
}

var (
	currentConfig *Config
	configLock    sync.RWMutex
)

// DefaultConfig 返回本地开发可直接使用的配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{Name: "commission-service", Port: 8090, LogLevel: "info"},
		Database: DatabaseConfig{
			Host: "localhost", Port: 3306, User: "root", Name: "commission",
			MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLife: 30 * time.Minute,
		},
		Kafka: KafkaConfig{
			OrderTopic:     "commission.order-events",
			ConsumerGroup:  "commission-service",
			DeadLetter:     "commission.order-events.dlt",
			EventTopic:     "commission.events",
			ProcessTimeout: 10 * time.Second,
		},
		Redis:     RedisConfig{DedupTTL: 72 * time.Hour},
		Zookeeper: ZookeeperConfig{SessionTimeout: 5 * time.Second, LockTimeout: 10 * time.Second},
		Auth:      AuthConfig{Issuer: "nexus"},
		CRM:       CRMConfig{Timeout: 3 * time.Second},
		Tiers: []TierConfig{
			{Tier: "BRONZE", MinSales: "0", DefaultRate: "5"},
			{Tier: "SILVER", MinSales: "10000", DefaultRate: "8"},
			{Tier: "GOLD", MinSales: "50000", DefaultRate: "10"},
			{Tier: "PLATINUM", MinSales: "200000", DefaultRate: "15"},
		},
		Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
	}
}

// LoadConfig 依次应用默认值、YAML 文件（存在时）和环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
			log.Warn().Str("path", path).Msg("config file not found, using defaults")
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// MergeYAML 把远端配置中心下发的 YAML 覆盖到现有配置上
func (c *Config) MergeYAML(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return errors.Wrap(yaml.Unmarshal([]byte(content), c), "merge remote config")
}

func applyEnv(cfg *Config) {
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Redis.Addrs = getEnvList("REDIS_ADDRS", cfg.Redis.Addrs)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Zookeeper.Servers = getEnvList("ZK_SERVERS", cfg.Zookeeper.Servers)
	cfg.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.CRM.WebhookURL = getEnv("CRM_WEBHOOK_URL", cfg.CRM.WebhookURL)

	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
	cfg.Nacos.DataID = getEnv("NACOS_DATA_ID", cfg.Nacos.DataID)
}

// SetCurrentConfig 替换进程内的当前配置
func SetCurrentConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	currentConfig = cfg
}

// GetCurrentConfig 返回当前配置，未初始化时返回默认配置
func GetCurrentConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	if currentConfig == nil {
		return DefaultConfig()
	}
	return currentConfig
}

// Addr 返回 host:port
func (d DatabaseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-numeric env value")
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
