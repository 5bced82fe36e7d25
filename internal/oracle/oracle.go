// Package oracle 封装了收益预测信号源。预测流程只作为额外的调仓触发器，
// 属于尽力而为的装饰性信号，任何正确性保证都不得依赖它。
package oracle

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Prediction 是一次预测的输出：分值与置信度，均为无量纲的演示数值。
type Prediction struct {
	Score      uint64 `json:"score"`
	Confidence uint64 `json:"confidence"`
}

// Oracle 抽象了预测信号源。实现可以随时替换，调用方只消费数值。
type Oracle interface {
	Predict(ctx context.Context) (Prediction, error)
}

// DemoOracle 用伪随机数生成预测，复刻演示环境的行为。
type DemoOracle struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDemoOracle 创建演示用的预测源。
func NewDemoOracle() *DemoOracle {
	return &DemoOracle{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Predict 返回 [0, 1000) 的分值与 [50, 100) 的置信度。
func (o *DemoOracle) Predict(context.Context) (Prediction, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Prediction{
		Score:      uint64(o.rng.Intn(1000)),
		Confidence: uint64(50 + o.rng.Intn(50)),
	}, nil
}

var _ Oracle = (*DemoOracle)(nil)
