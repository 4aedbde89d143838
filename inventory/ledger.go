package inventory

import "sync"

// DefaultHistoryCap mid 历史保留长度；波动率、VaR、ES 只读取尾部窗口。
const DefaultHistoryCap = 256

// HistoryCapFor 返回能覆盖所有窗口的历史长度：窗口读取 window+1 个 mid，另留一项余量。
func HistoryCapFor(windows ...int) int {
	need := DefaultHistoryCap
	for _, w := range windows {
		need = max(need, w+2)
	}
	return need
}

// Ledger 维护单个做市实例的整数库存、现金与盯市盈亏。
type Ledger struct {
	mu   sync.RWMutex
	inv  int64
	cash float64
	pnl  float64
	cost float64 // 持仓加权平均成本

	histCap int
	mids    []float64
}

// NewLedger 以初始 mid 作为历史第一项。
func NewLedger(historyCap int, initialMid float64) *Ledger {
	if historyCap < 2 {
		historyCap = DefaultHistoryCap
	}
	l := &Ledger{histCap: historyCap, mids: make([]float64, 0, historyCap)}
	l.mids = append(l.mids, initialMid)
	return l
}

// Apply 记一笔成交：deltaQty 正买负卖，fee 为带符号现金流（返佣为正，费用为负）。
func (l *Ledger) Apply(deltaQty int64, price, fee float64) {
	if deltaQty == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash += -float64(deltaQty)*price + fee

	prev := l.inv
	l.inv += deltaQty
	switch {
	case l.inv == 0:
		l.cost = 0
	case prev == 0 || (prev > 0) != (l.inv > 0):
		// 开仓或穿越零点：成本重置为成交价
		l.cost = price
	case (prev > 0) == (deltaQty > 0):
		// 同向加仓：加权平均
		l.cost = (l.cost*float64(abs(prev)) + price*float64(abs(deltaQty))) / float64(abs(l.inv))
	}
	// 减仓不改变平均成本
}

// Mark 按 mid 盯市并记录历史，返回最新 pnl。
func (l *Ledger) Mark(mid float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pnl = l.cash + float64(l.inv)*mid
	if len(l.mids) == l.histCap {
		copy(l.mids, l.mids[1:])
		l.mids = l.mids[:len(l.mids)-1]
	}
	l.mids = append(l.mids, mid)
	return l.pnl
}

func (l *Ledger) Inventory() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inv
}

// Cash 已实现现金（含手续费与返佣）。
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// PnL 最近一次 Mark 的盯市盈亏。
func (l *Ledger) PnL() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pnl
}

func (l *Ledger) AvgCost() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cost
}

// Valuation 基于给定 mid 计算未实现盈亏。
func (l *Ledger) Valuation(mid float64) (net int64, unrealized float64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inv, (mid - l.cost) * float64(l.inv)
}

// MidHistory 返回 mid 历史副本（按时间顺序）。
func (l *Ledger) MidHistory() []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]float64, len(l.mids))
	copy(out, l.mids)
	return out
}

// MidChanges 返回最近 window 个逐步 mid 差分；历史不足时长度更短。
func (l *Ledger) MidChanges(window int) []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	mids := l.mids
	if window > 0 && len(mids) > window+1 {
		mids = mids[len(mids)-window-1:]
	}
	if len(mids) < 2 {
		return nil
	}
	out := make([]float64, len(mids)-1)
	for i := 1; i < len(mids); i++ {
		out[i-1] = mids[i] - mids[i-1]
	}
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
