package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Log          LogConfig          `mapstructure:"log"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Gating       GatingConfig       `mapstructure:"gating"`
	Upload       UploadConfig       `mapstructure:"upload"`
	Storage      StorageConfig      `mapstructure:"storage"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Audit        AuditConfig        `mapstructure:"audit"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
	LogSQL          bool   `mapstructure:"log_sql"`           // 以 debug 级别输出每条 SQL
	SlowQueryMS     int    `mapstructure:"slow_query_ms"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 单节点地址
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AuthConfig 令牌校验配置
type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	Issuer      string        `mapstructure:"issuer"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

// GatingConfig 需求门控配置
type GatingConfig struct {
	// Enabled 全局开关，关闭后所有门控路由直接放行（APP_GATING_ENABLED）
	Enabled  bool          `mapstructure:"enabled"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"` // 字节
}

// StorageConfig 本地文件存储
type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RateLimitRule 单个动作的固定窗口规则
type RateLimitRule struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Store         string                   `mapstructure:"store"` // memory, redis
	SweepInterval time.Duration            `mapstructure:"sweep_interval"`
	Default       RateLimitRule            `mapstructure:"default"`
	Rules         map[string]RateLimitRule `mapstructure:"rules"`
}

// Rule 返回指定动作的规则，未配置时回退到默认值
func (c RateLimitConfig) Rule(action string) RateLimitRule {
	if r, ok := c.Rules[action]; ok && r.Max > 0 && r.Window > 0 {
		return r
	}
	return c.Default
}

// AuditConfig 审计队列配置
type AuditConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	Workers   int `mapstructure:"workers"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Queue     string     `mapstructure:"queue"` // memory, redis
	Channel   string     `mapstructure:"channel"` // log, email
	QueueSize int        `mapstructure:"queue_size"`
	Workers   int        `mapstructure:"workers"`
	SMTP      SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// setDefaults 注册默认值，配置文件缺失时依旧可以启动
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "accreditation.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.slow_query_ms", 200)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("auth.issuer", "accreditation")
	v.SetDefault("auth.token_expiry", 8*time.Hour)

	v.SetDefault("gating.enabled", true)
	v.SetDefault("gating.cache_ttl", 60*time.Second)

	v.SetDefault("upload.max_file_size", 10<<20)
	v.SetDefault("storage.base_path", "./uploads")

	v.SetDefault("rate_limit.store", "memory")
	v.SetDefault("rate_limit.sweep_interval", 5*time.Minute)
	v.SetDefault("rate_limit.default.window", time.Minute)
	v.SetDefault("rate_limit.default.max", 30)

	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("audit.workers", 2)

	v.SetDefault("notification.queue", "memory")
	v.SetDefault("notification.channel", "log")
	v.SetDefault("notification.queue_size", 512)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.smtp.port", 587)
}

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // APP_GATING_ENABLED
	// AutomaticEnv 只覆盖已知键，没有默认值的键需要显式绑定
	if err := bindEnvs(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

// bindEnvs 按 mapstructure 标签递归绑定所有叶子键，map 类型的规则表只能来自配置文件
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			if err := bindEnvs(v, field.Type, key); err != nil {
				return err
			}
		case reflect.Map:
		default:
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
			}
		}
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
