package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Jaden-Nix/gravity-nexus/internal/actionlog"
	"github.com/Jaden-Nix/gravity-nexus/internal/api"
	"github.com/Jaden-Nix/gravity-nexus/internal/auth"
	"github.com/Jaden-Nix/gravity-nexus/internal/config"
	"github.com/Jaden-Nix/gravity-nexus/internal/hub"
	"github.com/Jaden-Nix/gravity-nexus/internal/ledger/evm"
	"github.com/Jaden-Nix/gravity-nexus/internal/ledger/provider"
	"github.com/Jaden-Nix/gravity-nexus/internal/observability/alerting"
	"github.com/Jaden-Nix/gravity-nexus/internal/observability/metrics"
	"github.com/Jaden-Nix/gravity-nexus/internal/oracle"
	"github.com/Jaden-Nix/gravity-nexus/internal/policy"
	"github.com/Jaden-Nix/gravity-nexus/internal/reactive"
	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
	"github.com/Jaden-Nix/gravity-nexus/pkg/logger"
)

// localLedger 为进程内池子虚拟账本的名称。
const localLedger = "local"

// main 是 Gravity Nexus 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("nexusd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("NEXUS_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "nexus.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit:       logger.AuditConfig{Path: cfg.Logging.AuditPath},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 动作日志存储。
	var store actionlog.Store
	switch cfg.Storage.ActionLog.Driver {
	case "", "memory":
		store = actionlog.NewMemoryStore()
	case "mysql":
		mysqlStore, err := actionlog.NewMySQLStore(cfg.Storage.ActionLog.DSN)
		if err != nil {
			return err
		}
		store = mysqlStore
	default:
		return fmt.Errorf("未知的动作日志驱动: %s", cfg.Storage.ActionLog.Driver)
	}
	defer func() { _ = store.Close() }()

	// 事件投递通道。
	var queue reactive.Queue
	switch cfg.Queue.Driver {
	case "", "memory":
		queue = reactive.NewMemoryQueue(cfg.Queue.BufferSize)
	case "redis":
		redisQueue, err := reactive.NewRedisQueue(reactive.RedisQueueConfig{
			Address:   cfg.Queue.Redis.Address,
			Password:  cfg.Queue.Redis.Password,
			DB:        cfg.Queue.Redis.DB,
			Queue:     cfg.Queue.Redis.Queue,
			BlockWait: cfg.Queue.Redis.BlockWaitDuration(),
		})
		if err != nil {
			return err
		}
		queue = redisQueue
	case "rabbitmq":
		rabbitQueue, err := reactive.NewRabbitMQQueue(reactive.RabbitMQConfig{
			URL:        cfg.Queue.RabbitMQ.URL,
			Queue:      cfg.Queue.RabbitMQ.Queue,
			Prefetch:   cfg.Queue.RabbitMQ.Prefetch,
			Durable:    cfg.Queue.RabbitMQ.Durable,
			AutoDelete: cfg.Queue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		queue = rabbitQueue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			log.Printf("关闭事件队列失败: %v", err)
		}
	}()

	// 账本客户端。没有定义文件时只用进程内池子。
	ledgerRegistry, err := provider.NewRegistry(ctx, provider.Config{
		LedgerConfig:  cfg.Ledgers.Definitions,
		DefaultLedger: cfg.Ledgers.Default,
	})
	if err != nil {
		return err
	}
	defer ledgerRegistry.Close()

	owner := common.HexToAddress(cfg.Vault.Owner)
	agentPrincipal := common.HexToAddress(cfg.Vault.AgentPrincipal)
	hubPrincipal := common.HexToAddress(cfg.Vault.HubPrincipal)

	// 金库与初始池子。
	v := vault.New(cfg.Vault.Asset, owner)
	subRegistry := reactive.NewRegistry()
	for i, rate := range cfg.Vault.Pools {
		adapter := vault.NewMemoryAdapter(rate)
		if _, err := v.AddAdapter(owner, adapter); err != nil {
			return err
		}
		// 进程内池子的利率变化以合成事件进入同一条投递通道，
		// 与真实账本日志共用一套订阅与评估路径。
		source := common.BigToAddress(big.NewInt(int64(i + 1)))
		subRegistry.Subscribe(localLedger, source, evm.RateUpdatedTopic, agentPrincipal)
		adapter.OnRateUpdated(func(rate uint64) {
			event := reactive.NewEvent(localLedger, types.Log{
				Address: source,
				Topics:  []common.Hash{evm.RateUpdatedTopic, common.BigToHash(new(big.Int).SetUint64(rate))},
			})
			publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := queue.Publish(publishCtx, event); err != nil {
				logger.L().Error("合成事件发布失败", "error", err)
			}
		})
	}

	// 执行枢纽：绑定金库、授权 Hub 调仓、登记自动化主体。
	executor := hub.New(owner, hubPrincipal)
	if err := executor.SetVault(owner, v); err != nil {
		return err
	}
	if err := executor.SetReactiveNetwork(owner, agentPrincipal); err != nil {
		return err
	}
	if err := v.SetAuthorization(owner, hubPrincipal, true); err != nil {
		return err
	}

	engine := policy.NewEngine(cfg.Policy.ThresholdBasisPoints)

	agentOpts := []reactive.AgentOption{
		reactive.WithAlertDispatcher(alerting.NewFanout()),
		reactive.WithWorkerCount(cfg.Queue.WorkerCount),
	}
	if cfg.Oracle.Enabled {
		agentOpts = append(agentOpts, reactive.WithOracle(
			oracle.NewDemoOracle(),
			cfg.Oracle.Score,
			cfg.Oracle.IntervalDuration(),
		))
	}

	agent := reactive.NewAgent(agentPrincipal, v, engine, executor, subRegistry, store, agentOpts...)

	// 真实账本的日志观察器。
	for _, name := range ledgerRegistry.Ledgers() {
		client, ok := ledgerRegistry.Client(name)
		if !ok {
			continue
		}
		watcher := reactive.NewWatcher(name, client, subRegistry, queue)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("日志观察器退出", "error", err)
			}
		}()
	}

	// 指标服务。
	go func() {
		if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("指标服务退出", "error", err)
		}
	}()

	// 事件消费主循环。
	go func() {
		if err := agent.Run(ctx, queue); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("自动化代理退出", "error", err)
		}
	}()

	guard := auth.NewGuard(cfg.Server.APITokens)
	server := api.NewServer(cfg.Server.Address, agent, v, store, subRegistry, guard)

	logger.L().Info("nexusd 已启动",
		"addr", cfg.Server.Address,
		"asset", cfg.Vault.Asset,
		"pools", len(cfg.Vault.Pools),
		"queue", cfg.Queue.Driver,
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
