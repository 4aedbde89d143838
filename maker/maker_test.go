package maker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-maker-sim/market"
	"market-maker-sim/risk"
	"market-maker-sim/strategy/asmm"
)

func newTestMaker(t *testing.T, mutate func(*Config)) (*MarketMaker, *market.OrderBook, *market.ExecPublisher) {
	t.Helper()
	cfg := Config{
		Venue:          "A",
		Symbol:         "XYZ",
		QuoteSize:      40,
		InventoryLimit: 400,
		MakerFeeBps:    -0.05,
		Params:         asmm.DefaultParams(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	book := market.NewOrderBook(100, 0.01, market.DefaultLevels)
	pub := market.NewExecPublisher()
	return New(cfg, book, risk.NewManager(cfg.InventoryLimit), pub, nil), book, pub
}

func TestMakeQuotePlacesBothSides(t *testing.T) {
	mm, book, _ := newTestMaker(t, nil)
	q, ok := mm.MakeQuote(0, 1)
	require.True(t, ok)
	assert.Less(t, q.Bid, q.Ask)

	bidID, askID := mm.QuoteIDs()
	require.NotZero(t, bidID)
	require.NotZero(t, askID)
	bid, ok := book.Order(bidID)
	require.True(t, ok)
	assert.Equal(t, market.Buy, bid.Side)
	assert.Equal(t, int64(40), bid.Qty)
	assert.Equal(t, int64(1), bid.Ts)
	assert.Equal(t, 12, book.Len())

	// 重新报价先撤旧单
	mm.MakeQuote(0, 2)
	assert.Equal(t, 12, book.Len())
	_, live := book.Order(bidID)
	assert.False(t, live)
}

func TestMakeQuoteNeverCrossesBook(t *testing.T) {
	mm, book, _ := newTestMaker(t, nil)
	// 大幅正 alpha 把 reservation 推到 ask 之上
	mm.OnFills([]market.Fill{{MakerOwner: market.OwnerMarketMaker, Side: market.Sell, Price: 100, Qty: 300}})
	q, ok := mm.MakeQuote(200, 1)
	require.True(t, ok)
	ask, _ := book.BestAsk()
	bid, _ := book.BestBid()
	assert.Less(t, q.Bid, q.Ask)
	assert.Less(t, bid.Price, ask.Price)
}

func TestMakeQuoteSizesShrinkWithInventory(t *testing.T) {
	mm, book, _ := newTestMaker(t, nil)
	mm.OnFills([]market.Fill{{MakerOwner: market.OwnerMarketMaker, Side: market.Buy, Price: 100, Qty: 380}})
	require.Equal(t, int64(380), mm.Inventory())

	mm.MakeQuote(0, 1)
	bidID, askID := mm.QuoteIDs()
	b, _ := book.Order(bidID)
	a, _ := book.Order(askID)
	assert.Equal(t, int64(20), b.Qty)
	assert.Equal(t, int64(20), a.Qty)

	// 达到上限后两侧规模都为 0，不挂单
	mm.OnFills([]market.Fill{{MakerOwner: market.OwnerMarketMaker, Side: market.Buy, Price: 100, Qty: 20}})
	_, ok := mm.MakeQuote(0, 2)
	assert.True(t, ok)
	bidID, askID = mm.QuoteIDs()
	assert.Zero(t, bidID)
	assert.Zero(t, askID)
	assert.Equal(t, 10, book.Len())
}

func TestMakeQuoteOnCarriedMid(t *testing.T) {
	mm, book, _ := newTestMaker(t, nil)
	// 买盘被打空，簿内 mid 为 0
	book.PlaceMarket(market.OwnerExternalFlow, market.Sell, 10000)
	require.Zero(t, book.Mid())

	q, ok := mm.MakeQuote(0, 1)
	require.True(t, ok)
	assert.Less(t, q.Bid, q.Ask)
	assert.InDelta(t, 100, q.Reservation, 1e-9)
	bidID, askID := mm.QuoteIDs()
	assert.NotZero(t, bidID)
	assert.NotZero(t, askID)

	// 报价补上空的一侧后簿内重新有 mid
	assert.Greater(t, book.Mid(), 0.0)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Less(t, bid.Price, ask.Price)
}

func TestMakeQuoteSkipsWithoutReferenceMid(t *testing.T) {
	book := market.NewOrderBook(0, 0.01, 0)
	mm := New(Config{Venue: "A", QuoteSize: 10, InventoryLimit: 100, Params: asmm.DefaultParams()},
		book, risk.NewManager(100), nil, nil)
	_, ok := mm.MakeQuote(0, 1)
	assert.False(t, ok)
	bidID, askID := mm.QuoteIDs()
	assert.Zero(t, bidID)
	assert.Zero(t, askID)
	assert.Zero(t, book.Len())
}

func TestMakeQuoteFallbackModel(t *testing.T) {
	mm, _, _ := newTestMaker(t, func(c *Config) { c.Params.UseAvellaneda = false })
	q, ok := mm.MakeQuote(0, 1)
	require.True(t, ok)
	assert.Less(t, q.Bid, q.Ask)
	assert.InDelta(t, 100, q.Reservation, 1e-9)
}

func TestOnFillsMakerAccounting(t *testing.T) {
	mm, _, pub := newTestMaker(t, nil)
	mm.OnFills([]market.Fill{
		{MakerID: 1, MakerOwner: market.OwnerMarketMaker, Side: market.Sell, Price: 100.02, Qty: 10},
		{MakerID: 2, MakerOwner: market.OwnerLiquidity, Side: market.Sell, Price: 100.03, Qty: 10},
	})
	assert.Equal(t, int64(-10), mm.Inventory())
	rebate := 10 * 100.02 * 0.05 * 1e-4
	assert.InDelta(t, 1000.2+rebate, mm.Realized(), 1e-9)

	execs := pub.Drain()
	require.Len(t, execs, 1)
	e := execs[0]
	assert.Equal(t, market.RoleMaker, e.Role)
	assert.Equal(t, market.Sell, e.Side)
	assert.Equal(t, "A", e.Venue)
	assert.Equal(t, "XYZ", e.Symbol)
	assert.InDelta(t, rebate, e.Fee, 1e-12)
	assert.InDelta(t, (100.02-e.MidAtFill)*10, e.SpreadCapture, 1e-9)

	mm.OnFills([]market.Fill{{MakerOwner: market.OwnerMarketMaker, Side: market.Buy, Price: 99.98, Qty: 10}})
	e = pub.Drain()[0]
	assert.InDelta(t, (e.MidAtFill-99.98)*10, e.SpreadCapture, 1e-9)
	assert.Equal(t, int64(0), mm.Inventory())
}

func TestApplyTakerFills(t *testing.T) {
	mm, book, pub := newTestMaker(t, nil)
	// 本方市价买入，maker 腿为卖方
	fills := book.PlaceMarket(market.OwnerMarketMaker, market.Buy, 250)
	mm.ApplyTakerFills(fills, 0.2)

	assert.Equal(t, int64(250), mm.Inventory())
	notional := 200*100.01 + 50*100.02
	fees := notional * 0.2 * 1e-4
	assert.InDelta(t, -notional-fees, mm.Realized(), 1e-9)

	execs := pub.Drain()
	require.Len(t, execs, 2)
	for _, e := range execs {
		assert.Equal(t, market.RoleTaker, e.Role)
		assert.Equal(t, market.Buy, e.Side)
		assert.Less(t, e.Fee, 0.0)
		assert.Zero(t, e.SpreadCapture)
	}

	// 负费率也按成本处理
	mm.ApplyTakerFills([]market.Fill{{Side: market.Buy, Price: 100, Qty: 10}}, -1)
	e := pub.Drain()[0]
	assert.Equal(t, market.Sell, e.Side)
	assert.InDelta(t, -0.1, e.Fee, 1e-12)
}

func TestMarkToMarket(t *testing.T) {
	mm, book, _ := newTestMaker(t, nil)
	mm.OnFills([]market.Fill{{MakerOwner: market.OwnerMarketMaker, Side: market.Buy, Price: 99.99, Qty: 10}})
	pnl := mm.MarkToMarket()
	assert.InDelta(t, mm.Realized()+10*book.Mid(), pnl, 1e-9)
	assert.Equal(t, []float64{100, 100}, mm.MidHistory())

	// 单边空簿沿用上一 mid
	book.PlaceMarket(market.OwnerExternalFlow, market.Buy, 10000)
	mm.MarkToMarket()
	assert.Equal(t, 100.0, mm.LastMid())
}

func TestExternalFlowHitsQuote(t *testing.T) {
	mm, book, pub := newTestMaker(t, func(c *Config) { c.Params.UseAvellaneda = false })
	mm.MakeQuote(0, 1)
	_, askID := mm.QuoteIDs()
	ask, _ := book.Order(askID)

	// 吃穿所有价位直到做市商报价
	fills := book.PlaceMarket(market.OwnerExternalFlow, market.Buy, 5000)
	mm.OnFills(fills)
	assert.Equal(t, -ask.Qty, mm.Inventory())
	require.Len(t, pub.Drain(), 1)
}
