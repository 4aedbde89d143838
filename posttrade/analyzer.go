package posttrade

import (
	"sync"

	"market-maker-sim/market"
)

// 成交后观察的步数。
const (
	ShortHorizon = 1
	LongHorizon  = 5
)

// FillRecord 一笔 maker 成交及其后续 mid。
type FillRecord struct {
	Symbol    string
	Venue     string
	Step      int64
	FillPrice float64
	Side      market.Side
	MidAfter1 float64
	MidAfter5 float64
	hasAfter1 bool
	hasAfter5 bool
}

// Stats 逆向选择统计。Markout 以做市商视角计算，正值有利。
type Stats struct {
	AdverseSelectionRate float64
	AvgMarkout1          float64
	AvgMarkout5          float64
	TotalFills           int
	AnalyzedFills        int
}

// Analyzer 跟踪 maker 成交在 1 步和 5 步之后的 mid，估计逆向选择。
type Analyzer struct {
	mu      sync.RWMutex
	fills   []*FillRecord
	pending map[string][]*FillRecord
	maxKeep int
}

// NewAnalyzer maxKeep<=0 表示不限制保留条数。
func NewAnalyzer(maxKeep int) *Analyzer {
	return &Analyzer{pending: make(map[string][]*FillRecord), maxKeep: maxKeep}
}

// OnFill 记录一笔成交；taker 成交不参与逆向选择分析。
func (a *Analyzer) OnFill(step int64, e market.Execution) {
	if e.Role != market.RoleMaker {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := &FillRecord{
		Symbol:    e.Symbol,
		Venue:     e.Venue,
		Step:      step,
		FillPrice: e.Price,
		Side:      e.Side,
	}
	a.fills = append(a.fills, rec)
	a.pending[e.Symbol] = append(a.pending[e.Symbol], rec)
	if a.maxKeep > 0 && len(a.fills) > a.maxKeep {
		a.fills = a.fills[len(a.fills)-a.maxKeep:]
	}
}

// OnMid 用 symbol 在 step 的 mid 补全等待中的成交。
func (a *Analyzer) OnMid(symbol string, step int64, mid float64) {
	if mid <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	waiting := a.pending[symbol]
	keep := waiting[:0]
	for _, rec := range waiting {
		switch step - rec.Step {
		case ShortHorizon:
			rec.MidAfter1, rec.hasAfter1 = mid, true
		case LongHorizon:
			rec.MidAfter5, rec.hasAfter5 = mid, true
		}
		if !rec.hasAfter5 && step-rec.Step < LongHorizon {
			keep = append(keep, rec)
		}
	}
	a.pending[symbol] = keep
}

// Stats computes markout statistics over fills with both horizons observed.
func (a *Analyzer) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{TotalFills: len(a.fills)}
	var adverse int
	var sum1, sum5 float64
	for _, rec := range a.fills {
		if !rec.hasAfter1 || !rec.hasAfter5 || rec.FillPrice <= 0 {
			continue
		}
		stats.AnalyzedFills++
		m1 := markout(rec.Side, rec.FillPrice, rec.MidAfter1)
		m5 := markout(rec.Side, rec.FillPrice, rec.MidAfter5)
		sum1 += m1
		sum5 += m5
		if m1 < 0 {
			adverse++
		}
	}
	if stats.AnalyzedFills > 0 {
		n := float64(stats.AnalyzedFills)
		stats.AdverseSelectionRate = float64(adverse) / n
		stats.AvgMarkout1 = sum1 / n
		stats.AvgMarkout5 = sum5 / n
	}
	return stats
}

// markout 买单价格上涨有利，卖单价格下跌有利，按成交价归一。
func markout(side market.Side, price, after float64) float64 {
	if side == market.Buy {
		return (after - price) / price
	}
	return (price - after) / price
}
