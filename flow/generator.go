package flow

import (
	"math"
	"math/rand"

	"market-maker-sim/market"
)

const (
	// MarketOrderProb 每个事件为市价单的概率。
	MarketOrderProb = 0.7
	// impactRefQty 冲击项的参考数量。
	impactRefQty = 100.0
	// DefaultImpactKappa 默认冲击系数。
	DefaultImpactKappa = 0.03
)

var (
	marketQtys = []int64{20, 50, 100}
	limitQtys  = []int64{50, 100}
)

// Generator 向订单簿注入外部订单流。每个实例持有自己的随机源。
type Generator struct {
	Kappa     float64
	Intensity float64
	rng       *rand.Rand
}

// NewGenerator 创建生成器；rng 为 nil 时使用固定种子。
func NewGenerator(kappa float64, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Generator{Kappa: kappa, Intensity: 1, rng: rng}
}

// Events 单次调用的事件数：max(1, int(2·intensity))。
func (g *Generator) Events() int {
	n := int(2 * sanitize(g.Intensity))
	if n < 1 {
		return 1
	}
	return n
}

// Simulate 生成一批外部订单并返回所有成交（maker 腿）。
// 市价单方向受 alpha 影响：买入概率 0.5 + 0.4·max(alpha, 0)；
// 每笔市价单之后整体平移价格 dir·κ·(qty/100)·tick。
// 限价单挂在对应一侧最优价外 1–2 个 tick，任一侧为空时跳过。
func (g *Generator) Simulate(book *market.OrderBook, alpha float64) []market.Fill {
	alpha = sanitize(alpha)
	tick := book.Tick()
	var fills []market.Fill
	for i := 0; i < g.Events(); i++ {
		if g.rng.Float64() < MarketOrderProb {
			pBuy := 0.5 + 0.4*math.Max(alpha, 0)
			side := market.Sell
			if g.rng.Float64() < pBuy {
				side = market.Buy
			}
			qty := marketQtys[g.rng.Intn(len(marketQtys))]
			fills = append(fills, book.PlaceMarket(market.OwnerExternalFlow, side, qty)...)
			book.ShiftPrices(float64(side.Sign()) * g.Kappa * (float64(qty) / impactRefQty) * tick)
			continue
		}

		bid, okb := book.BestBid()
		ask, oka := book.BestAsk()
		if !okb || !oka {
			continue
		}
		side := market.Buy
		if g.rng.Intn(2) == 1 {
			side = market.Sell
		}
		off := float64(1+g.rng.Intn(2)) * tick
		price := bid.Price - off
		if side == market.Sell {
			price = ask.Price + off
		}
		qty := limitQtys[g.rng.Intn(len(limitQtys))]
		book.PlaceLimit(market.OwnerExternalFlow, side, price, qty, -1)
	}
	return fills
}
