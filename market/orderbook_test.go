package market

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fataler interface {
	Fatalf(format string, args ...any)
}

// checkBook 校验 arena、价位链表与聚合数量一致，且买卖不交叉。
func checkBook(t fataler, ob *OrderBook) {
	seen := 0
	for _, bs := range []*bookSide{ob.bids, ob.asks} {
		if len(bs.prices) != len(bs.levels) {
			t.Fatalf("%s: %d prices vs %d levels", bs.side, len(bs.prices), len(bs.levels))
		}
		for i, p := range bs.prices {
			if i > 0 && !bs.better(bs.prices[i-1], p) {
				t.Fatalf("%s prices out of order at %d: %v", bs.side, i, bs.prices)
			}
			lv := bs.levels[p]
			var sum int64
			n := 0
			for id := lv.head; id != 0; id = ob.orders[id].next {
				o := ob.orders[id]
				if o.Qty <= 0 {
					t.Fatalf("order %d has qty %d", id, o.Qty)
				}
				if o.Price != p || o.Side != bs.side {
					t.Fatalf("order %d (%s %.6f) linked under %s %.6f", id, o.Side, o.Price, bs.side, p)
				}
				sum += o.Qty
				n++
			}
			if sum != lv.qty || n != lv.count || n == 0 {
				t.Fatalf("level %.6f: qty %d/%d count %d/%d", p, lv.qty, sum, lv.count, n)
			}
			seen += n
		}
	}
	if seen != len(ob.orders) {
		t.Fatalf("arena has %d orders, levels reference %d", len(ob.orders), seen)
	}
	bid, okb := ob.BestBid()
	ask, oka := ob.BestAsk()
	if okb && oka && !(bid.Price < ask.Price) {
		t.Fatalf("crossed book: bid %.6f >= ask %.6f", bid.Price, ask.Price)
	}
}

func sideQty(ob *OrderBook, s Side) int64 {
	var n int64
	for _, lv := range ob.sideOf(s).levels {
		n += lv.qty
	}
	return n
}

func TestSeededBookMarketBuy(t *testing.T) {
	ob := NewOrderBook(100, 0.01, DefaultLevels)
	require.Equal(t, 10, ob.Len())
	require.Equal(t, int64(1000), sideQty(ob, Sell))

	fills := ob.PlaceMarket(OwnerExternalFlow, Buy, 250)
	require.Len(t, fills, 2)
	assert.InDelta(t, 100.01, fills[0].Price, 1e-9)
	assert.Equal(t, int64(200), fills[0].Qty)
	assert.InDelta(t, 100.02, fills[1].Price, 1e-9)
	assert.Equal(t, int64(50), fills[1].Qty)
	for _, f := range fills {
		assert.Equal(t, Sell, f.Side)
		assert.Equal(t, OwnerLiquidity, f.MakerOwner)
	}

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 100.02, ask.Price, 1e-9)
	assert.Equal(t, int64(150), ask.Qty)

	d := ob.Depth(0)
	require.Len(t, d.Asks, 4)
	for _, lv := range d.Asks[1:] {
		assert.Equal(t, int64(200), lv.Qty)
	}
	assert.Len(t, d.Bids, 5)
	checkBook(t, ob)
}

func TestMarketOrderExhaustsSide(t *testing.T) {
	ob := NewOrderBook(100, 0.01, 2)
	fills := ob.PlaceMarket(OwnerExternalFlow, Sell, 1000)
	assert.Equal(t, int64(400), TotalQty(fills))
	_, ok := ob.BestBid()
	assert.False(t, ok)
	assert.Equal(t, 0.0, ob.Mid())

	// 对手盘为空：零成交，不报错
	assert.Empty(t, ob.PlaceMarket(OwnerExternalFlow, Sell, 10))
	checkBook(t, ob)
}

func TestReplenishEmptySide(t *testing.T) {
	ob := NewOrderBook(100, 0.01, 2)
	ob.PlaceMarket(OwnerExternalFlow, Sell, 1000)
	require.Equal(t, 0.0, ob.Mid())

	// 买盘锚定在剩余最优卖价下方
	assert.Equal(t, 3, ob.Replenish(100, 3))
	bid, ok := ob.BestBid()
	require.True(t, ok)
	ask, _ := ob.BestAsk()
	assert.InDelta(t, ask.Price-0.01, bid.Price, 1e-9)
	assert.Equal(t, seedQty, bid.Qty)
	checkBook(t, ob)

	// 两侧都有挂单时不动
	assert.Zero(t, ob.Replenish(100, 3))
}

func TestReplenishBothSidesEmpty(t *testing.T) {
	ob := NewOrderBook(0, 0.01, 0)
	assert.Zero(t, ob.Replenish(0, 3), "no reference price")
	assert.Zero(t, ob.Replenish(math.Inf(1), 3))
	assert.Zero(t, ob.Replenish(100, 0))

	assert.Equal(t, 4, ob.Replenish(50, 2))
	assert.InDelta(t, 50, ob.Mid(), 1e-9)
	checkBook(t, ob)
}

func TestPriceTimePriority(t *testing.T) {
	ob := NewOrderBook(0, 0.01, 0)
	first := ob.PlaceLimit(OwnerExternalFlow, Sell, 101, 30, 1)
	second := ob.PlaceLimit(OwnerMarketMaker, Sell, 101, 30, 2)
	better := ob.PlaceLimit(OwnerExternalFlow, Sell, 100.5, 10, 3)

	fills := ob.PlaceMarket(OwnerExternalFlow, Buy, 50)
	require.Len(t, fills, 3)
	assert.Equal(t, better, fills[0].MakerID)
	assert.Equal(t, first, fills[1].MakerID)
	assert.Equal(t, int64(30), fills[1].Qty)
	assert.Equal(t, second, fills[2].MakerID)
	assert.Equal(t, int64(10), fills[2].Qty)
	assert.Equal(t, OwnerMarketMaker, fills[2].MakerOwner)

	o, ok := ob.Order(second)
	require.True(t, ok)
	assert.Equal(t, int64(20), o.Qty)
	checkBook(t, ob)
}

func TestCancelIdempotent(t *testing.T) {
	ob := NewOrderBook(100, 0.01, DefaultLevels)
	id := ob.PlaceLimit(OwnerMarketMaker, Buy, 99.9, 40, 0)
	assert.True(t, ob.Cancel(id))
	assert.False(t, ob.Cancel(id))
	assert.False(t, ob.Cancel(OrderID(987654)))
	checkBook(t, ob)
}

func TestCancelLastOrderRemovesLevel(t *testing.T) {
	ob := NewOrderBook(100, 0.01, DefaultLevels)
	id := ob.PlaceLimit(OwnerMarketMaker, Sell, 100.5, 10, 0)
	before := len(ob.Depth(0).Asks)
	require.True(t, ob.Cancel(id))
	assert.Len(t, ob.Depth(0).Asks, before-1)
	for _, lv := range ob.Depth(0).Asks {
		assert.NotEqual(t, 100.5, lv.Price)
	}
}

func TestFilledOrderCannotBeCancelled(t *testing.T) {
	ob := NewOrderBook(0, 0.01, 0)
	id := ob.PlaceLimit(OwnerMarketMaker, Buy, 99, 5, 0)
	ob.PlaceLimit(OwnerExternalFlow, Sell, 101, 5, 0)
	fills := ob.PlaceMarket(OwnerExternalFlow, Sell, 5)
	require.Len(t, fills, 1)
	assert.False(t, ob.Cancel(id))
}

func TestShiftPrices(t *testing.T) {
	ob := NewOrderBook(100, 0.01, 3)
	mid := ob.Mid()
	ob.ShiftPrices(0)
	assert.Equal(t, mid, ob.Mid())

	ob.ShiftPrices(0.05)
	assert.InDelta(t, 100.05, ob.Mid(), 1e-9)
	bid, _ := ob.BestBid()
	assert.InDelta(t, 100.04, bid.Price, 1e-9)

	ob.ShiftPrices(math.NaN())
	assert.InDelta(t, 100.05, ob.Mid(), 1e-9)

	// 平移后仍可按新价撤单和成交
	fills := ob.PlaceMarket(OwnerExternalFlow, Buy, 10)
	require.Len(t, fills, 1)
	assert.InDelta(t, 100.06, fills[0].Price, 1e-9)
	checkBook(t, ob)
}

func TestPlaceLimitRejectsNonPositiveQty(t *testing.T) {
	ob := NewOrderBook(100, 0.01, 1)
	assert.Equal(t, OrderID(0), ob.PlaceLimit(OwnerMarketMaker, Buy, 99, 0, 0))
	assert.Equal(t, OrderID(0), ob.PlaceLimit(OwnerMarketMaker, Buy, math.Inf(1), 10, 0))
	assert.Equal(t, 2, ob.Len())
}

func TestOrderBookProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ob := NewOrderBook(100, 0.01, rapid.IntRange(0, 5).Draw(t, "levels"))
		var ids []OrderID
		center := 100.0
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side")
				k := float64(rapid.IntRange(1, 10).Draw(t, "ticks"))
				price := center + k*0.01
				if side == Buy {
					price = center - k*0.01
				}
				qty := rapid.Int64Range(1, 300).Draw(t, "qty")
				ids = append(ids, ob.PlaceLimit(OwnerExternalFlow, side, price, qty, int64(i)))
			case 1:
				side := rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "mside")
				qty := rapid.Int64Range(1, 800).Draw(t, "mqty")
				before := sideQty(ob, side.Opposite())
				fills := ob.PlaceMarket(OwnerExternalFlow, side, qty)
				took := TotalQty(fills)
				if took > qty {
					t.Fatalf("filled %d > requested %d", took, qty)
				}
				if before-sideQty(ob, side.Opposite()) != took {
					t.Fatalf("conservation broken: removed %d, filled %d", before-sideQty(ob, side.Opposite()), took)
				}
			case 2:
				if len(ids) == 0 {
					continue
				}
				id := ids[rapid.IntRange(0, len(ids)-1).Draw(t, "idx")]
				_, live := ob.Order(id)
				if ob.Cancel(id) != live {
					t.Fatalf("cancel(%d) result disagrees with liveness %v", id, live)
				}
				if ob.Cancel(id) {
					t.Fatalf("second cancel of %d succeeded", id)
				}
			case 3:
				delta := float64(rapid.IntRange(-3, 3).Draw(t, "shift")) * 0.01
				ob.ShiftPrices(delta)
				center = NormalizePrice(center + delta)
			}
			checkBook(t, ob)
		}
	})
}
