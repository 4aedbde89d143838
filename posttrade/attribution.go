package posttrade

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"market-maker-sim/market"
)

// Key 归因分组。
type Key struct {
	Symbol string
	Venue  string
}

// Row 单个 (symbol, venue) 的成交盈亏归因。
// Net = MakerRebate - TakerFees + SpreadCapture。
type Row struct {
	Symbol        string          `json:"symbol"`
	Venue         string          `json:"venue"`
	MakerRebate   decimal.Decimal `json:"maker_rebate"`
	TakerFees     decimal.Decimal `json:"taker_fees"`
	SpreadCapture decimal.Decimal `json:"spread_capture"`
	Qty           int64           `json:"qty"`
	Net           decimal.Decimal `json:"net_exec_pnl"`
}

// Attribution 以十进制累加成交回报，避免长跑中的浮点漂移。
type Attribution struct {
	mu   sync.Mutex
	rows map[Key]*Row
}

func NewAttribution() *Attribution {
	return &Attribution{rows: make(map[Key]*Row)}
}

// Add 累加一条成交：正 fee 计入返佣，负 fee 计入 taker/maker 费用。
func (a *Attribution) Add(e market.Execution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := Key{Symbol: e.Symbol, Venue: e.Venue}
	row, ok := a.rows[k]
	if !ok {
		row = &Row{Symbol: e.Symbol, Venue: e.Venue}
		a.rows[k] = row
	}
	fee := decimal.NewFromFloat(e.Fee)
	if fee.IsPositive() {
		row.MakerRebate = row.MakerRebate.Add(fee)
	} else {
		row.TakerFees = row.TakerFees.Sub(fee)
	}
	row.SpreadCapture = row.SpreadCapture.Add(decimal.NewFromFloat(e.SpreadCapture))
	row.Qty += e.Qty
	row.Net = row.MakerRebate.Sub(row.TakerFees).Add(row.SpreadCapture)
}

// Rows 按 symbol、venue 排序的归因结果。
func (a *Attribution) Rows() []Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Row, 0, len(a.rows))
	for _, r := range a.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Venue < out[j].Venue
	})
	return out
}

// Total 全部分组 Net 之和。
func (a *Attribution) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range a.Rows() {
		total = total.Add(r.Net)
	}
	return total
}
