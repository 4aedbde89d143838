// Package router 在同一 symbol 的多个 venue 间分配报价并执行组合对冲。
package router

import (
	"math"

	"go.uber.org/zap"

	"market-maker-sim/maker"
	"market-maker-sim/market"
	"market-maker-sim/risk"
)

// Config 单个 symbol 的路由配置。Maker 为各 venue 做市实例的公共参数，
// 其中 Venue、Symbol、MakerFeeBps 由路由器按 venue 覆盖。
type Config struct {
	Symbol     string
	StartPrice float64
	Tick       float64
	Levels     int
	TopK       int
	Lookback   int
	Maker      maker.Config
	Venues     []VenueConfig
}

// HedgeResult 一次对冲的执行结果。
type HedgeResult struct {
	Venue     string
	Side      market.Side
	Requested int64
	Filled    int64
	Fills     []market.Fill
}

// Executed 是否实际发出了对冲单。
func (h HedgeResult) Executed() bool { return h.Requested > 0 }

// Router 一个 symbol 的多 venue 做市路由器。
type Router struct {
	symbol   string
	topK     int
	venues   []*Venue
	names    []string
	byName   map[string]*Venue
	risk     risk.Manager
	selector *Selector
	pub      *market.ExecPublisher
	logger   *zap.Logger
}

// New 按配置顺序为每个 venue 建立订单簿与做市实例，共享同一个风控与成交队列。
func New(cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Levels <= 0 {
		cfg.Levels = market.DefaultLevels
	}
	r := &Router{
		symbol:   cfg.Symbol,
		topK:     cfg.TopK,
		byName:   make(map[string]*Venue, len(cfg.Venues)),
		risk:     risk.NewManager(cfg.Maker.InventoryLimit),
		selector: NewSelector(cfg.Lookback),
		pub:      market.NewExecPublisher(),
		logger:   logger.With(zap.String("symbol", cfg.Symbol)),
	}
	for _, vc := range cfg.Venues {
		book := market.NewOrderBook(cfg.StartPrice, cfg.Tick, cfg.Levels)
		mc := cfg.Maker
		mc.Venue = vc.Name
		mc.Symbol = cfg.Symbol
		mc.MakerFeeBps = vc.MakerFeeBps
		v := &Venue{
			Name:        vc.Name,
			Book:        book,
			MM:          maker.New(mc, book, r.risk, r.pub, logger),
			MakerFeeBps: vc.MakerFeeBps,
			TakerFeeBps: vc.TakerFeeBps,
			LatencyMs:   vc.LatencyMs,
		}
		r.venues = append(r.venues, v)
		r.names = append(r.names, vc.Name)
		r.byName[vc.Name] = v
	}
	return r
}

func (r *Router) Symbol() string { return r.symbol }

// Venues 按配置顺序返回全部 venue。
func (r *Router) Venues() []*Venue { return r.venues }

func (r *Router) Venue(name string) (*Venue, bool) {
	v, ok := r.byName[name]
	return v, ok
}

func (r *Router) Selector() *Selector { return r.selector }

// MakeQuotes 按 EV 选出至多 topK 个 venue 并让其重新报价，返回选中的 venue。
func (r *Router) MakeQuotes(alpha float64, ts int64) []string {
	chosen := r.selector.Pick(r.names, r.topK)
	for _, name := range chosen {
		r.byName[name].MM.MakeQuote(alpha, ts)
	}
	return chosen
}

// UpdateSelectorFromExec 仅 maker 成交计入 venue 历史：spread capture + 返佣 - adverse（恒为 0）。
func (r *Router) UpdateSelectorFromExec(e market.Execution) {
	if e.Role != market.RoleMaker {
		return
	}
	notional := math.Abs(float64(e.Qty)) * e.Price
	r.selector.Update(e.Venue, e.SpreadCapture, notional, e.Fee, 0)
}

// Drain 按发布顺序取出本 symbol 的成交回报并更新 venue 评分。
func (r *Router) Drain() []market.Execution {
	execs := r.pub.Drain()
	for _, e := range execs {
		r.UpdateSelectorFromExec(e)
	}
	return execs
}

// Inventory 读取参考 venue（配置中第一个）的库存，各 venue 视为同一逻辑仓位。
func (r *Router) Inventory() int64 {
	if len(r.venues) == 0 {
		return 0
	}
	return r.venues[0].MM.Inventory()
}

// TotalInventory 各 venue 库存之和，仅用于展示。
func (r *Router) TotalInventory() int64 {
	var n int64
	for _, v := range r.venues {
		n += v.MM.Inventory()
	}
	return n
}

// PnL 各 venue 盯市盈亏的均值。
func (r *Router) PnL() float64 {
	if len(r.venues) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.venues {
		sum += v.MM.PnL()
	}
	return sum / float64(len(r.venues))
}

// Mid 有效（非 0）mid 的均值。
func (r *Router) Mid() float64 {
	sum, n := 0.0, 0
	for _, v := range r.venues {
		if m := v.Book.Mid(); m > 0 {
			sum += m
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (r *Router) MarkToMarket() {
	for _, v := range r.venues {
		v.MM.MarkToMarket()
	}
}

// MidChanges 参考 venue 最近 window 个逐步 mid 差分。
func (r *Router) MidChanges(window int) []float64 {
	if len(r.venues) == 0 {
		return nil
	}
	return r.venues[0].MM.MidChanges(window)
}

// MidHistory 参考 venue 的 mid 历史。
func (r *Router) MidHistory() []float64 {
	if len(r.venues) == 0 {
		return nil
	}
	return r.venues[0].MM.MidHistory()
}

// HedgePortfolio 以 floor(fraction·|inv|) 在 taker 费率最低的 venue 反向市价成交。
// 库存为 0 或对冲量取整为 0 时不操作。下单前撤掉该 venue 的做市报价，避免自成交。
func (r *Router) HedgePortfolio(fraction float64) HedgeResult {
	inv := r.Inventory()
	if inv == 0 || len(r.venues) == 0 || math.IsNaN(fraction) || fraction <= 0 {
		return HedgeResult{}
	}
	qty := int64(math.Floor(fraction * math.Abs(float64(inv))))
	if qty <= 0 {
		return HedgeResult{}
	}

	best := r.venues[0]
	for _, v := range r.venues[1:] {
		if v.TakerFeeBps < best.TakerFeeBps {
			best = v
		}
	}
	side := market.Sell
	if inv < 0 {
		side = market.Buy
	}

	best.MM.CancelQuotes()
	fills := best.Book.PlaceMarket(market.OwnerMarketMaker, side, qty)
	best.MM.ApplyTakerFills(fills, best.TakerFeeBps)

	res := HedgeResult{Venue: best.Name, Side: side, Requested: qty, Filled: market.TotalQty(fills), Fills: fills}
	r.logger.Info("portfolio hedge",
		zap.String("venue", res.Venue),
		zap.String("side", string(side)),
		zap.Int64("inventory", inv),
		zap.Int64("requested", res.Requested),
		zap.Int64("filled", res.Filled),
	)
	return res
}
