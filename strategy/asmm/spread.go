package asmm

import (
	"math"

	"market-maker-sim/market"
)

const (
	minVolHalfSpread = 1e-4
	maxVolHalfSpread = 5.0
	// 简化模型中波动率项使用的固定风险厌恶与深度参数
	volSpreadGamma = 0.1
	volSpreadK     = 1.5
)

// VolHalfSpread 由已实现波动率给出半价差，截断在 [1e-4, 5]。
func VolHalfSpread(sigma float64) float64 {
	if math.IsNaN(sigma) {
		sigma = 0
	}
	sigma = math.Max(-1e3, math.Min(1e3, sigma))
	h := 0.5 * sigma * (1 + volSpreadGamma) / volSpreadK
	return math.Min(math.Max(h, minVolHalfSpread), maxVolHalfSpread)
}

// FallbackHalfSpread 简化模型的半价差：base bps 对应的价差加上波动率项。
func FallbackHalfSpread(mid, baseSpreadBps, vol float64) float64 {
	mid = finiteOr(mid, 0)
	base := math.Abs(mid) * math.Max(finiteOr(baseSpreadBps, 0), 0) * 1e-4
	return base + VolHalfSpread(vol)
}

// FallbackQuotes 简化报价模型：以 mid 为中心，按库存占限额比例向反方向倾斜。
// inv=limit 时 reservation 偏移 skewK 个半价差。
func FallbackQuotes(mid float64, inventory, limit int64, baseSpreadBps, vol, skewK, tick float64) Quote {
	mid = finiteOr(mid, 0)
	tick = math.Max(positiveOr(math.Abs(tick), DefaultTick), market.MinTick)
	half := math.Max(FallbackHalfSpread(mid, baseSpreadBps, vol), tick)

	ratio := 0.0
	if limit > 0 {
		ratio = math.Max(-1, math.Min(1, float64(inventory)/float64(limit)))
	}
	r := mid - math.Max(finiteOr(skewK, 0), 0)*ratio*half

	return Quote{
		Bid:         snapBid(r-half, tick, mid),
		Ask:         snapAsk(r+half, tick, mid),
		Reservation: r,
		HalfSpread:  half,
	}.ordered(tick)
}
