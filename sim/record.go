package sim

import (
	"sync"

	"market-maker-sim/market"
	"market-maker-sim/router"
)

// StepRecord 每步每个 symbol 的扁平快照。
type StepRecord struct {
	Symbol            string        `json:"symbol"`
	Step              int64         `json:"timestamp"`
	Mid               float64       `json:"mid"`
	Inventory         int64         `json:"inventory"`
	PnL               float64       `json:"pnl"`
	Alpha             float64       `json:"alpha"`
	PortfolioVaR      float64       `json:"portfolio_var"`
	ExpectedShortfall float64       `json:"expected_shortfall"`
	Regime            market.Regime `json:"regime"`
	Hedged            bool          `json:"hedge_event"`
	Replenished       int           `json:"replenished"`
}

// StepResult 一步的完整输出，按 symbol 配置顺序排列。
type StepResult struct {
	Step       int64                `json:"step"`
	VaR        float64              `json:"portfolio_var"`
	Breach     bool                 `json:"breach"`
	Hedged     bool                 `json:"hedged"`
	Records    []StepRecord         `json:"records"`
	Executions []market.Execution   `json:"executions"`
	Hedges     []router.HedgeResult `json:"-"`
}

// Sink 消费每一步的结果。实现不得阻塞步进循环。
type Sink interface {
	OnStep(res StepResult)
}

// SinkFunc 适配普通函数。
type SinkFunc func(StepResult)

func (f SinkFunc) OnStep(res StepResult) { f(res) }

// Collector 在内存中累积全部记录与成交，供报表和测试使用。
type Collector struct {
	mu         sync.Mutex
	records    []StepRecord
	executions []market.Execution
	hedgeSteps []int64
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) OnStep(res StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, res.Records...)
	c.executions = append(c.executions, res.Executions...)
	if res.Hedged {
		c.hedgeSteps = append(c.hedgeSteps, res.Step)
	}
}

func (c *Collector) Records() []StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]StepRecord(nil), c.records...)
}

func (c *Collector) Executions() []market.Execution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]market.Execution(nil), c.executions...)
}

// HedgeSteps 发生组合对冲的步。
func (c *Collector) HedgeSteps() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.hedgeSteps...)
}

// BySymbol 按 symbol 分组的记录。
func (c *Collector) BySymbol() map[string][]StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]StepRecord)
	for _, r := range c.records {
		out[r.Symbol] = append(out[r.Symbol], r)
	}
	return out
}
