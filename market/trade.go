package market

import "fmt"

// Side 订单方向。
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite 返回相反方向。
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sign 买为 +1，卖为 -1。
func (s Side) Sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Owner 标识挂单来源。
type Owner string

const (
	OwnerMarketMaker  Owner = "MM"
	OwnerExternalFlow Owner = "EXT"
	// OwnerLiquidity 冷启动时铺设的外部流动性。
	OwnerLiquidity Owner = "LIQ"
)

// OrderID 在单个订单簿内单调递增。
type OrderID uint64

// Fill 是一次撮合的 maker 腿。Side 为被动方（maker）的方向。
type Fill struct {
	MakerID    OrderID
	MakerOwner Owner
	Side       Side
	Price      float64
	Qty        int64
}

func (f Fill) String() string {
	return fmt.Sprintf("fill{id=%d owner=%s side=%s px=%.4f qty=%d}", f.MakerID, f.MakerOwner, f.Side, f.Price, f.Qty)
}

// TotalQty 汇总成交数量。
func TotalQty(fills []Fill) int64 {
	var n int64
	for _, f := range fills {
		n += f.Qty
	}
	return n
}
