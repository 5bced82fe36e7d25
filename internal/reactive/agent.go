package reactive

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Jaden-Nix/gravity-nexus/internal/actionlog"
	xerrors "github.com/Jaden-Nix/gravity-nexus/internal/errors"
	"github.com/Jaden-Nix/gravity-nexus/internal/hub"
	"github.com/Jaden-Nix/gravity-nexus/internal/observability/alerting"
	"github.com/Jaden-Nix/gravity-nexus/internal/observability/metrics"
	"github.com/Jaden-Nix/gravity-nexus/internal/oracle"
	"github.com/Jaden-Nix/gravity-nexus/internal/policy"
	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
	"github.com/Jaden-Nix/gravity-nexus/pkg/logger"
)

// 预测信号的默认触发参数。预测通道是尽力而为的锦上添花，
// 正确性永远不依赖它。
const (
	defaultOracleThreshold uint64 = 700
	defaultOracleInterval         = time.Minute
	defaultWorkerCount            = 4
)

// Agent 是自动化闭环的核心：消费投递通道中的事件，匹配订阅，
// 以评估时刻的新鲜快照跑一遍策略引擎，再把产生的调仓意图
// 经执行枢纽分发到金库。每次评估无论结果如何都会落一条
// 动作记录。
type Agent struct {
	// principal 为登记在执行枢纽的自动化主体身份。
	principal common.Address

	vault    *vault.Vault
	engine   *policy.Engine
	executor *hub.Hub
	registry *Registry
	store    actionlog.Store

	alerts    alerting.Dispatcher
	predictor oracle.Oracle

	// moveCap 限制单次调仓的数量上限，为空时等于源池全部余额。
	moveCap         *big.Int
	oracleThreshold uint64
	oracleInterval  time.Duration
	workerCount     int

	log *slog.Logger
}

// AgentOption 定义可选的 Agent 配置。
type AgentOption func(*Agent)

// WithMoveCap 设置单次调仓的数量上限。
func WithMoveCap(amount *big.Int) AgentOption {
	return func(a *Agent) {
		if amount != nil && amount.Sign() > 0 {
			a.moveCap = new(big.Int).Set(amount)
		}
	}
}

// WithAlertDispatcher 配置告警分发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) AgentOption {
	return func(a *Agent) {
		a.alerts = dispatcher
	}
}

// WithOracle 启用预测信号触发通道。
func WithOracle(predictor oracle.Oracle, threshold uint64, interval time.Duration) AgentOption {
	return func(a *Agent) {
		a.predictor = predictor
		if threshold > 0 {
			a.oracleThreshold = threshold
		}
		if interval > 0 {
			a.oracleInterval = interval
		}
	}
}

// WithWorkerCount 设置消费投递通道的工作协程数量。
func WithWorkerCount(count int) AgentOption {
	return func(a *Agent) {
		if count > 0 {
			a.workerCount = count
		}
	}
}

// NewAgent 创建自动化代理。
func NewAgent(principal common.Address, v *vault.Vault, engine *policy.Engine, executor *hub.Hub, registry *Registry, store actionlog.Store, opts ...AgentOption) *Agent {
	agent := &Agent{
		principal:       principal,
		vault:           v,
		engine:          engine,
		executor:        executor,
		registry:        registry,
		store:           store,
		oracleThreshold: defaultOracleThreshold,
		oracleInterval:  defaultOracleInterval,
		workerCount:     defaultWorkerCount,
		log:             logger.Named("agent"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(agent)
		}
	}
	return agent
}

// Run 阻塞消费投递通道直到 ctx 取消。配置了预测器时会同时
// 启动预测轮询协程。
func (a *Agent) Run(ctx context.Context, consumer Consumer) error {
	if a.predictor != nil {
		go a.runOracle(ctx)
	}
	return consumer.Consume(ctx, a.workerCount, a.HandleEvent)
}

// HandleEvent 处理一条投递通道事件。通道只保证至少一次投递，
// 因此这里必须幂等：重复事件会在策略评估处自然退化为无动作。
func (a *Agent) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	sub, ok := a.registry.Match(event)
	if !ok {
		metrics.ObserveEvent(true)
		a.log.Debug("事件无匹配订阅，丢弃", "event_id", event.ID, "source", event.Source.Hex())
		return nil
	}
	metrics.ObserveEvent(false)
	a.log.Info("收到订阅事件",
		"event_id", event.ID,
		"ledger", event.Ledger,
		"subscription", sub.ID,
		"block", event.BlockNumber,
	)

	_, err := a.Evaluate(ctx, actionlog.TriggerEvent, event)
	return err
}

// Evaluate 跑一遍完整的评估与执行流程，并落一条动作记录。
// 事件载荷中的数据一律不作为决策输入，利率与余额都以此刻的
// 金库快照为准。
func (a *Agent) Evaluate(ctx context.Context, trigger actionlog.Trigger, event *Event) (*actionlog.Record, error) {
	record := a.newRecord(trigger, event)

	pools, err := a.vault.Snapshot(ctx)
	if err != nil {
		a.alert(ctx, record, err, "读取金库快照失败")
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "读取金库快照失败")
	}

	moveCap := a.moveCap
	if moveCap == nil {
		moveCap = sumBalances(pools)
	}

	intent := a.engine.Evaluate(pools, moveCap)
	if intent == nil {
		record.OK = true
		record.Outcome = actionlog.OutcomeNoAction
		metrics.ObserveAction(string(trigger), metrics.ResultNoAction)
		a.append(ctx, record)
		return record, nil
	}
	return a.dispatch(ctx, record, intent)
}

// dispatch 把调仓意图编码后交给执行枢纽。
func (a *Agent) dispatch(ctx context.Context, record *actionlog.Record, intent *policy.Intent) (*actionlog.Record, error) {
	record.FromIndex = intent.FromIndex
	record.ToIndex = intent.ToIndex
	record.Amount = intent.Amount.String()
	record.RateGap = intent.RateGap
	metrics.ObserveRateGap(intent.RateGap)

	params, err := hub.EncodeRebalanceParams(intent.FromIndex, intent.ToIndex, intent.Amount)
	if err != nil {
		record.Outcome = actionlog.OutcomeFailed
		record.Reason = err.Error()
		metrics.ObserveAction(string(record.Trigger), metrics.ResultFailed)
		a.append(ctx, record)
		return record, nil
	}

	outcome, err := a.executor.ExecuteAction(ctx, a.principal, hub.ActionRebalance, params)
	if err != nil {
		// 授权漂移之类的硬失败重投也无济于事，落记录并告警后吞掉。
		record.Outcome = actionlog.OutcomeFailed
		record.Reason = err.Error()
		metrics.ObserveAction(string(record.Trigger), metrics.ResultFailed)
		a.alert(ctx, record, err, "执行枢纽拒绝了调用")
		a.append(ctx, record)
		return record, nil
	}

	record.OK = outcome.OK
	if outcome.OK {
		record.Outcome = actionlog.OutcomeRebalanced
		if outcome.Moved != "" {
			record.Amount = outcome.Moved
		}
		metrics.ObserveAction(string(record.Trigger), metrics.ResultRebalanced)
		a.log.Info("再平衡完成",
			"action_id", record.ID,
			"from", record.FromIndex,
			"to", record.ToIndex,
			"moved", record.Amount,
			"rate_gap", record.RateGap,
		)
	} else {
		record.Outcome = actionlog.OutcomeFailed
		record.Reason = outcome.Reason
		metrics.ObserveAction(string(record.Trigger), metrics.ResultFailed)
		a.log.Warn("再平衡未成功", "action_id", record.ID, "reason", outcome.Reason)
	}
	a.append(ctx, record)
	return record, nil
}

// runOracle 周期性拉取预测信号。分数超过阈值时触发一次
// 常规的策略评估，是否调仓仍由策略引擎决定。
func (a *Agent) runOracle(ctx context.Context) {
	ticker := time.NewTicker(a.oracleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prediction, err := a.predictor.Predict(ctx)
			if err != nil {
				a.log.Warn("预测信号获取失败", "error", err)
				continue
			}
			if prediction.Score <= a.oracleThreshold {
				continue
			}
			a.log.Info("预测信号触发评估",
				"score", prediction.Score,
				"confidence", prediction.Confidence,
			)
			if _, err := a.Evaluate(ctx, actionlog.TriggerOracle, nil); err != nil {
				a.log.Warn("预测触发的评估失败", "error", err)
			}
		}
	}
}

func (a *Agent) newRecord(trigger actionlog.Trigger, event *Event) *actionlog.Record {
	record := &actionlog.Record{
		ID:         uuid.NewString(),
		ActionType: hub.ActionRebalance,
		Trigger:    trigger,
		CreatedAt:  time.Now().Unix(),
	}
	if event != nil {
		record.EventID = event.ID
		record.Ledger = event.Ledger
	}
	return record
}

// append 落动作记录。动作本身已经执行完毕，存储失败只告警不上抛。
func (a *Agent) append(ctx context.Context, record *actionlog.Record) {
	if err := a.store.Append(ctx, record); err != nil {
		a.log.Error("动作记录写入失败", "action_id", record.ID, "error", err)
		a.alert(ctx, record, err, "动作记录写入失败")
	}
}

func (a *Agent) alert(ctx context.Context, record *actionlog.Record, cause error, message string) {
	if a.alerts == nil {
		return
	}
	event := alerting.Event{
		Code:       xerrors.CodeOf(cause),
		Message:    message + ": " + cause.Error(),
		Severity:   xerrors.SeverityOf(cause),
		ActionID:   record.ID,
		Trigger:    string(record.Trigger),
		Ledger:     record.Ledger,
		OccurredAt: time.Now(),
	}
	if err := a.alerts.Notify(ctx, event); err != nil {
		a.log.Warn("告警发送失败", "error", err)
	}
}

func sumBalances(pools []vault.PoolSnapshot) *big.Int {
	total := new(big.Int)
	for _, pool := range pools {
		if pool.Balance != nil {
			total.Add(total, pool.Balance)
		}
	}
	return total
}
