package risk

// Manager 单一库存上限的报价规模控制。无可变状态，可在同一 symbol 的所有 venue 间共享。
type Manager struct {
	Limit int64
}

func NewManager(limit int64) Manager {
	if limit < 0 {
		limit = 0
	}
	return Manager{Limit: limit}
}

// CappedSize 返回 max(0, min(base, limit-|inv|))。
func (m Manager) CappedSize(inv, base int64) int64 {
	room := m.Limit - absInt(inv)
	return max(0, min(base, room))
}

// BidSize 买单规模：多头库存压缩买侧。
func (m Manager) BidSize(inv, base int64) int64 { return m.CappedSize(inv, base) }

// AskSize 卖单规模：空头库存压缩卖侧。
func (m Manager) AskSize(inv, base int64) int64 { return m.CappedSize(-inv, base) }

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
