package market

// Depth 保存订单簿前 N 档快照，按优先级排序。
type Depth struct {
	Bids []Level
	Asks []Level
}

// Spread 返回最优卖价与最优买价之差；任一侧为空返回 0。
func (d Depth) Spread() float64 {
	if len(d.Bids) == 0 || len(d.Asks) == 0 {
		return 0
	}
	return d.Asks[0].Price - d.Bids[0].Price
}

// Depth 返回每侧前 n 档聚合；n<=0 返回全部。
func (ob *OrderBook) Depth(n int) Depth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return Depth{Bids: collect(ob.bids, n), Asks: collect(ob.asks, n)}
}

func collect(bs *bookSide, n int) []Level {
	if n <= 0 || n > len(bs.prices) {
		n = len(bs.prices)
	}
	out := make([]Level, 0, n)
	for _, p := range bs.prices[:n] {
		lv := bs.levels[p]
		out = append(out, Level{Price: lv.price, Qty: lv.qty})
	}
	return out
}
