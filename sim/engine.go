// Package sim 驱动多 symbol、多 venue 的离散时间做市仿真。
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-maker-sim/alpha"
	"market-maker-sim/flow"
	"market-maker-sim/inventory"
	"market-maker-sim/market"
	"market-maker-sim/risk"
	"market-maker-sim/router"
)

// ErrNoSymbols 未配置任何 symbol。
var ErrNoSymbols = errors.New("sim: no symbols configured")

// seedStride 不同 symbol 的随机源种子间隔。
const seedStride = 1_000_003

// HawkesConfig 外部流自激强度参数。
type HawkesConfig struct {
	Enabled bool
	Mu      float64
	Alpha   float64
	Beta    float64
}

// RegimeConfig 两状态停留概率。
type RegimeConfig struct {
	StayCalm   float64
	StayStress float64
}

// Config 引擎配置；Router 为各 symbol 的公共模板，Symbol 字段按 symbol 覆盖。
type Config struct {
	Symbols     []string
	Router      router.Config
	Hawkes      HawkesConfig
	Regime      RegimeConfig
	ImpactKappa float64
	Portfolio   risk.PortfolioEngine
	ESWindow    int
	ESConf      float64
	Seed        int64
	Parallel    bool
	// LogEvery 每隔多少步输出一次进度，0 关闭。
	LogEvery int
}

// Alerter 风险告警出口。
type Alerter interface {
	SendWarning(message string, fields map[string]interface{}) error
}

// Option 配置 Engine 的可选依赖。
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithAlerter(a Alerter) Option { return func(e *Engine) { e.alerter = a } }

func WithSinks(s ...Sink) Option { return func(e *Engine) { e.sinks = append(e.sinks, s...) } }

// WithRunID 固定 run id（默认随机生成）。
func WithRunID(id string) Option { return func(e *Engine) { e.runID = id } }

type symbolState struct {
	symbol string
	router *router.Router
	regime *market.RegimeSwitch
	hawkes *flow.Hawkes
	gen    *flow.Generator
	rng    *rand.Rand

	lastEvents  int
	replenished int
	alpha       float64
}

// Engine 步进循环。每个 symbol 独占自己的订单簿、随机源与成交队列，
// 并行步进后在组合 VaR 处汇合。
type Engine struct {
	cfg     Config
	symbols []*symbolState
	alpha   alpha.Provider
	sinks   []Sink
	alerter Alerter
	logger  *zap.Logger
	runID   string
	step    int64
	hedges  int
}

// Summary 一次运行的汇总。
type Summary struct {
	RunID    string
	Steps    int64
	Hedges   int
	LastVaR  float64
	Final    []StepRecord
	Duration time.Duration
}

// New 按配置构建引擎；provider 为 nil 时 alpha 恒为 0。
func New(cfg Config, provider alpha.Provider, opts ...Option) (*Engine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if provider == nil {
		provider = alpha.Constant(0)
	}
	if cfg.ESWindow <= 0 {
		cfg.ESWindow = risk.DefaultESWindow
	}
	if cfg.ESConf <= 0 || cfg.ESConf >= 1 {
		cfg.ESConf = risk.DefaultESConf
	}
	// ledger 历史必须覆盖 ES、VaR 与波动率窗口
	cfg.Router.Maker.HistoryCap = max(cfg.Router.Maker.HistoryCap,
		inventory.HistoryCapFor(cfg.ESWindow, cfg.Portfolio.Window, cfg.Router.Maker.VolWindow))
	e := &Engine{cfg: cfg, alpha: provider}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	e.logger = e.logger.With(zap.String("run_id", e.runID))

	seen := make(map[string]struct{}, len(cfg.Symbols))
	for i, sym := range cfg.Symbols {
		if _, dup := seen[sym]; dup {
			return nil, fmt.Errorf("sim: duplicate symbol %q", sym)
		}
		seen[sym] = struct{}{}

		base := cfg.Seed + int64(i)*seedStride
		rc := cfg.Router
		rc.Symbol = sym
		st := &symbolState{
			symbol: sym,
			router: router.New(rc, e.logger),
			regime: market.NewRegimeSwitch(cfg.Regime.StayCalm, cfg.Regime.StayStress, rand.New(rand.NewSource(base+1))),
			gen:    flow.NewGenerator(cfg.ImpactKappa, rand.New(rand.NewSource(base+2))),
			rng:    rand.New(rand.NewSource(base + 3)),
		}
		if cfg.Hawkes.Enabled {
			st.hawkes = flow.NewHawkes(cfg.Hawkes.Mu, cfg.Hawkes.Alpha, cfg.Hawkes.Beta)
		}
		e.symbols = append(e.symbols, st)
	}
	return e, nil
}

func (e *Engine) RunID() string { return e.runID }

// Router 返回 symbol 的路由器。
func (e *Engine) Router(symbol string) (*router.Router, bool) {
	for _, s := range e.symbols {
		if s.symbol == symbol {
			return s.router, true
		}
	}
	return nil, false
}

// Run 连续执行 steps 步；ctx 仅在步与步之间检查。
func (e *Engine) Run(ctx context.Context, steps int64) (Summary, error) {
	start := time.Now()
	e.logger.Info("simulation started",
		zap.Strings("symbols", e.cfg.Symbols),
		zap.Int64("steps", steps),
		zap.Int64("seed", e.cfg.Seed),
		zap.Bool("parallel", e.cfg.Parallel),
	)
	sum := Summary{RunID: e.runID}
	for i := int64(0); i < steps; i++ {
		if err := ctx.Err(); err != nil {
			sum.Hedges = e.hedges
			sum.Duration = time.Since(start)
			e.logger.Warn("simulation interrupted", zap.Int64("step", e.step), zap.Error(err))
			return sum, err
		}
		res, err := e.Step(ctx)
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}
		sum.Steps++
		sum.LastVaR = res.VaR
		sum.Final = res.Records
		if e.cfg.LogEvery > 0 && res.Step%int64(e.cfg.LogEvery) == 0 {
			for _, r := range res.Records {
				e.logger.Info("progress",
					zap.String("symbol", r.Symbol),
					zap.Int64("step", r.Step),
					zap.Float64("mid", r.Mid),
					zap.Int64("inventory", r.Inventory),
					zap.Float64("pnl", r.PnL),
				)
			}
		}
	}
	sum.Hedges = e.hedges
	sum.Duration = time.Since(start)
	e.logger.Info("simulation finished",
		zap.Int64("steps", sum.Steps),
		zap.Int("hedges", sum.Hedges),
		zap.Float64("last_var", sum.LastVaR),
		zap.Duration("elapsed", sum.Duration),
	)
	return sum, nil
}

// Step 推进一步：各 symbol 报价、外部流撮合、盯市，随后计算组合 VaR，
// 超限时对所有 symbol 对冲，最后收集成交与记录并分发给 sink。
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	t := e.step
	if e.cfg.Parallel && len(e.symbols) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, s := range e.symbols {
			s := s
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				e.stepSymbol(s, t)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return StepResult{}, err
		}
	} else {
		for _, s := range e.symbols {
			e.stepSymbol(s, t)
		}
	}

	exposures := make([]risk.Exposure, 0, len(e.symbols))
	for _, s := range e.symbols {
		exposures = append(exposures, risk.Exposure{
			Symbol:    s.symbol,
			Inventory: s.router.Inventory(),
			Changes:   s.router.MidChanges(e.cfg.Portfolio.Window),
		})
	}
	dec := e.cfg.Portfolio.Evaluate(exposures)
	res := StepResult{Step: t, VaR: dec.VaR, Breach: dec.Breach}
	if dec.Hedge {
		res.Hedged = true
		e.hedges++
		for _, s := range e.symbols {
			if h := s.router.HedgePortfolio(e.cfg.Portfolio.HedgeFraction); h.Executed() {
				res.Hedges = append(res.Hedges, h)
			}
		}
		e.logger.Info("risk_event",
			zap.String("event", "portfolio_hedge"),
			zap.Int64("step", t),
			zap.Float64("var", dec.VaR),
			zap.Float64("limit", e.cfg.Portfolio.Limit),
			zap.Int("orders", len(res.Hedges)),
		)
	}
	if dec.Breach && e.alerter != nil {
		if err := e.alerter.SendWarning("portfolio VaR breach", map[string]interface{}{
			"run_id": e.runID,
			"step":   t,
			"var":    dec.VaR,
			"limit":  e.cfg.Portfolio.Limit,
			"hedged": res.Hedged,
		}); err != nil {
			e.logger.Warn("alert delivery failed", zap.Error(err))
		}
	}

	for _, s := range e.symbols {
		res.Executions = append(res.Executions, s.router.Drain()...)
		res.Records = append(res.Records, StepRecord{
			Symbol:            s.symbol,
			Step:              t,
			Mid:               s.router.Mid(),
			Inventory:         s.router.Inventory(),
			PnL:               s.router.PnL(),
			Alpha:             s.alpha,
			PortfolioVaR:      dec.VaR,
			ExpectedShortfall: risk.RollingES(s.router.MidHistory(), e.cfg.ESWindow, e.cfg.ESConf),
			Regime:            s.regime.State(),
			Hedged:            res.Hedged,
			Replenished:       s.replenished,
		})
		s.replenished = 0
	}
	for _, sink := range e.sinks {
		sink.OnStep(res)
	}
	e.step++
	return res, nil
}

// stepSymbol 单个 symbol 的一步，只触碰该 symbol 自己的状态。
func (e *Engine) stepSymbol(s *symbolState, t int64) {
	s.alpha = e.alpha.Alpha(s.symbol, t)
	s.regime.Step()
	mult := s.regime.FlowMultiplier()

	// 强度每步推进一次，同一采样数作用于该 symbol 的所有 venue
	n := 1
	if s.hawkes != nil {
		s.hawkes.StepIntensity(s.lastEvents)
		s.lastEvents = s.hawkes.SampleEvents(s.rng)
		n += s.lastEvents
	}
	batches := int(mult * float64(n))

	s.router.MakeQuotes(s.alpha, t)
	for _, v := range s.router.Venues() {
		for i := 0; i < batches; i++ {
			if fills := s.gen.Simulate(v.Book, s.alpha); len(fills) > 0 {
				v.MM.OnFills(fills)
			}
		}
		if k := v.Book.Replenish(v.MM.LastMid(), e.levels()); k > 0 {
			s.replenished += k
		}
	}
	s.router.MarkToMarket()
}

// levels 补铺外部流动性的档数，与冷启动一致。
func (e *Engine) levels() int {
	if e.cfg.Router.Levels > 0 {
		return e.cfg.Router.Levels
	}
	return market.DefaultLevels
}
