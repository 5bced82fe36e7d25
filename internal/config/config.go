package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 nexusd 在启动阶段需要加载的核心配置。
type Config struct {
	Server  ServerConfig  `json:"server"`
	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Queue   QueueConfig   `json:"queue"`
	Ledgers LedgersConfig `json:"ledgers"`
	Vault   VaultConfig   `json:"vault"`
	Policy  PolicyConfig  `json:"policy"`
	Oracle  OracleConfig  `json:"oracle"`
}

// ServerConfig 控制 API 与指标服务的监听地址。
type ServerConfig struct {
	Address        string `json:"address"`
	MetricsAddress string `json:"metrics_address"`
	// APITokens 为运维接口的静态访问令牌，为空时不鉴权。
	APITokens []string `json:"api_tokens"`
}

// LoggingConfig 控制结构化日志输出。
type LoggingConfig struct {
	Level   string   `json:"level"`
	Format  string   `json:"format"`
	Outputs []string `json:"outputs"`
	// AuditPath 为审计日志文件路径，为空时复用主日志。
	AuditPath string `json:"audit_path"`
}

// StorageConfig 描述动作日志的持久化后端。
type StorageConfig struct {
	ActionLog ActionLogConfig `json:"action_log"`
}

// ActionLogConfig 支持 memory 与 mysql 两种驱动。
type ActionLogConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// QueueConfig 描述事件投递通道。
type QueueConfig struct {
	Driver      string         `json:"driver"`
	WorkerCount int            `json:"worker_count"`
	BufferSize  int            `json:"buffer_size"`
	Redis       RedisConfig    `json:"redis"`
	RabbitMQ    RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 描述 Redis 队列后端。
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	Queue     string `json:"queue"`
	BlockWait string `json:"block_wait"`
}

// BlockWaitDuration 解析阻塞等待时长，非法值回退为零让队列用默认值。
func (c RedisConfig) BlockWaitDuration() time.Duration {
	if c.BlockWait == "" {
		return 0
	}
	wait, err := time.ParseDuration(c.BlockWait)
	if err != nil {
		return 0
	}
	return wait
}

// RabbitMQConfig 描述 RabbitMQ 队列后端。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Prefetch   int    `json:"prefetch"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// LedgersConfig 指向账本定义文件。
type LedgersConfig struct {
	// Definitions 为 YAML 账本定义文件的路径，为空时只用进程内池子。
	Definitions string `json:"definitions"`
	Default     string `json:"default"`
}

// VaultConfig 描述金库的初始形态。
type VaultConfig struct {
	Asset string `json:"asset"`
	// Owner 为金库所有者地址（0x 前缀十六进制）。
	Owner string `json:"owner"`
	// AgentPrincipal 为自动化主体地址，登记到执行枢纽。
	AgentPrincipal string `json:"agent_principal"`
	// HubPrincipal 为执行枢纽自身的记账主体地址。
	HubPrincipal string `json:"hub_principal"`
	// Pools 为初始的进程内池子利率（基点）。
	Pools []uint64 `json:"pools"`
}

// PolicyConfig 控制策略引擎。
type PolicyConfig struct {
	// ThresholdBasisPoints 为调仓利差阈值，0 表示用默认值。
	ThresholdBasisPoints uint64 `json:"threshold_basis_points"`
}

// OracleConfig 控制预测信号通道，默认关闭。
type OracleConfig struct {
	Enabled  bool   `json:"enabled"`
	Score    uint64 `json:"score_threshold"`
	Interval string `json:"interval"`
}

// IntervalDuration 解析轮询间隔，非法值回退为零让 Agent 用默认值。
func (c OracleConfig) IntervalDuration() time.Duration {
	if c.Interval == "" {
		return 0
	}
	interval, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0
	}
	return interval
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9091"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Storage.ActionLog.Driver == "" {
		c.Storage.ActionLog.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.WorkerCount <= 0 {
		c.Queue.WorkerCount = 4
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 256
	}

	if c.Ledgers.Definitions != "" && !filepath.IsAbs(c.Ledgers.Definitions) {
		c.Ledgers.Definitions = filepath.Join(baseDir, c.Ledgers.Definitions)
	}

	if c.Vault.Asset == "" {
		c.Vault.Asset = "USDC"
	}
	if len(c.Vault.Pools) == 0 {
		// 两个演示池：5% 与 10%。
		c.Vault.Pools = []uint64{500, 1000}
	}

	if c.Oracle.Enabled && c.Oracle.Score == 0 {
		c.Oracle.Score = 700
	}
}
