// Package maker 实现单 venue 单 symbol 的做市实例：报价、成交记账与盯市。
package maker

import (
	"math"

	"go.uber.org/zap"

	"market-maker-sim/inventory"
	"market-maker-sim/market"
	"market-maker-sim/risk"
	"market-maker-sim/strategy/asmm"
)

const (
	// alphaMidShift AS 模式下 alpha 对参考 mid 的平移系数。
	alphaMidShift = 0.05
	// sigmaScale 年化波动率到模型 σ 的缩放。
	sigmaScale = 0.05
	minSigma   = 1e-6
)

// Config 单个做市实例的参数。
type Config struct {
	Venue          string
	Symbol         string
	QuoteSize      int64
	InventoryLimit int64
	MakerFeeBps    float64
	Params         asmm.Params
	VolWindow      int
	HistoryCap     int
}

// MarketMaker 在一个订单簿上维护至多一买一卖两张报价。
type MarketMaker struct {
	cfg    Config
	book   *market.OrderBook
	risk   risk.Manager
	ledger *inventory.Ledger
	pub    *market.ExecPublisher
	logger *zap.Logger

	bidID market.OrderID
	askID market.OrderID
	quote asmm.Quote
}

// New 创建做市实例；pub 可为 nil（不发布成交）。
func New(cfg Config, book *market.OrderBook, rm risk.Manager, pub *market.ExecPublisher, logger *zap.Logger) *MarketMaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VolWindow <= 0 {
		cfg.VolWindow = market.DefaultVolWindow
	}
	return &MarketMaker{
		cfg:    cfg,
		book:   book,
		risk:   rm,
		ledger: inventory.NewLedger(cfg.HistoryCap, book.Mid()),
		pub:    pub,
		logger: logger.With(zap.String("venue", cfg.Venue), zap.String("symbol", cfg.Symbol)),
	}
}

// MakeQuote 撤掉现有报价并按当前状态重新挂单。
// 单边空簿时围绕上一个有效 mid 报价；连历史 mid 也没有时不报价，返回 false。
func (m *MarketMaker) MakeQuote(alpha float64, ts int64) (asmm.Quote, bool) {
	m.CancelQuotes()

	mid := m.book.Mid()
	if mid <= 0 {
		mid = m.LastMid()
		if !(mid > 0) || math.IsInf(mid, 0) {
			m.logger.Debug("skip quote: no reference mid", zap.Int64("ts", ts))
			return asmm.Quote{}, false
		}
		m.logger.Debug("quote on carried mid", zap.Int64("ts", ts), zap.Float64("mid", mid))
	}
	if math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		alpha = 0
	}

	vol := market.RealizedVol(m.ledger.MidHistory(), m.cfg.VolWindow)
	tick := m.cfg.Params.Tick.Effective(vol, m.book.Tick())
	inv := m.ledger.Inventory()

	var q asmm.Quote
	p := m.cfg.Params
	if p.UseAvellaneda {
		sigma := math.Max(minSigma, vol*sigmaScale)
		q = asmm.OptimalQuotes(mid+alpha*alphaMidShift, inv, sigma, p.Gamma, p.K, p.Horizon, tick)
	} else {
		q = asmm.FallbackQuotes(mid, inv, m.cfg.InventoryLimit, p.BaseSpreadBps, vol, p.SkewK, tick)
	}
	q = m.postOnly(q)
	m.quote = q

	if size := m.risk.BidSize(inv, m.cfg.QuoteSize); size > 0 {
		m.bidID = m.book.PlaceLimit(market.OwnerMarketMaker, market.Buy, q.Bid, size, ts)
	}
	if size := m.risk.AskSize(inv, m.cfg.QuoteSize); size > 0 {
		m.askID = m.book.PlaceLimit(market.OwnerMarketMaker, market.Sell, q.Ask, size, ts)
	}
	return q, true
}

// postOnly 保证报价不穿过对手最优价：bid <= bestAsk-tick，ask >= bestBid+tick。
func (m *MarketMaker) postOnly(q asmm.Quote) asmm.Quote {
	tick := m.book.Tick()
	if ask, ok := m.book.BestAsk(); ok && q.Bid > ask.Price-tick {
		q.Bid = market.NormalizePrice(ask.Price - tick)
	}
	if bid, ok := m.book.BestBid(); ok && q.Ask < bid.Price+tick {
		q.Ask = market.NormalizePrice(bid.Price + tick)
	}
	return q
}

// CancelQuotes 撤掉当前挂着的买卖报价。
func (m *MarketMaker) CancelQuotes() {
	if m.bidID != 0 {
		m.book.Cancel(m.bidID)
	}
	if m.askID != 0 {
		m.book.Cancel(m.askID)
	}
	m.bidID, m.askID = 0, 0
}

// OnFills 处理属于做市商的 maker 成交：更新库存与现金，发布成交回报。
func (m *MarketMaker) OnFills(fills []market.Fill) {
	for _, f := range fills {
		if f.MakerOwner != market.OwnerMarketMaker || f.Qty <= 0 {
			continue
		}
		mid := m.book.Mid()
		rebate := -feeAmount(f.Qty, f.Price, m.cfg.MakerFeeBps)
		m.ledger.Apply(f.Side.Sign()*f.Qty, f.Price, rebate)

		capture := (mid - f.Price) * float64(f.Qty)
		if f.Side == market.Sell {
			capture = (f.Price - mid) * float64(f.Qty)
		}
		m.pub.Publish(market.Execution{
			Venue:         m.cfg.Venue,
			Role:          market.RoleMaker,
			Side:          f.Side,
			Qty:           f.Qty,
			Price:         f.Price,
			MidAtFill:     mid,
			FeeBps:        m.cfg.MakerFeeBps,
			Fee:           rebate,
			SpreadCapture: capture,
			Symbol:        m.cfg.Symbol,
		})
	}
}

// ApplyTakerFills 记账本方主动成交（对冲）。fills 为对手 maker 腿，
// 本方方向与 maker 方向相反；taker 费总是成本。
func (m *MarketMaker) ApplyTakerFills(fills []market.Fill, takerFeeBps float64) {
	for _, f := range fills {
		if f.Qty <= 0 {
			continue
		}
		side := f.Side.Opposite()
		cost := math.Abs(feeAmount(f.Qty, f.Price, takerFeeBps))
		m.ledger.Apply(side.Sign()*f.Qty, f.Price, -cost)
		m.pub.Publish(market.Execution{
			Venue:     m.cfg.Venue,
			Role:      market.RoleTaker,
			Side:      side,
			Qty:       f.Qty,
			Price:     f.Price,
			MidAtFill: m.book.Mid(),
			FeeBps:    takerFeeBps,
			Fee:       -cost,
			Symbol:    m.cfg.Symbol,
		})
	}
}

// MarkToMarket 按当前 mid 盯市。mid 为 0（单边空簿）时沿用上一个有效 mid。
func (m *MarketMaker) MarkToMarket() float64 {
	mid := m.book.Mid()
	if mid <= 0 {
		mid = m.LastMid()
	}
	return m.ledger.Mark(mid)
}

// feeAmount 计算 |qty|·price·bps·1e-4，正值为支付。
func feeAmount(qty int64, price, bps float64) float64 {
	if qty < 0 {
		qty = -qty
	}
	return float64(qty) * price * bps * 1e-4
}

func (m *MarketMaker) Inventory() int64 { return m.ledger.Inventory() }

func (m *MarketMaker) PnL() float64 { return m.ledger.PnL() }

// Realized 已实现现金。
func (m *MarketMaker) Realized() float64 { return m.ledger.Cash() }

func (m *MarketMaker) MidHistory() []float64 { return m.ledger.MidHistory() }

// MidChanges 最近 window 个逐步 mid 差分。
func (m *MarketMaker) MidChanges(window int) []float64 { return m.ledger.MidChanges(window) }

// LastMid 历史中最近的 mid。
func (m *MarketMaker) LastMid() float64 {
	h := m.ledger.MidHistory()
	if len(h) == 0 {
		return 0
	}
	return h[len(h)-1]
}

// QuoteIDs 当前挂单 id；0 表示该侧无报价。
func (m *MarketMaker) QuoteIDs() (bid, ask market.OrderID) { return m.bidID, m.askID }

// LastQuote 最近一次计算出的报价。
func (m *MarketMaker) LastQuote() asmm.Quote { return m.quote }

func (m *MarketMaker) Book() *market.OrderBook { return m.book }

func (m *MarketMaker) Venue() string { return m.cfg.Venue }
