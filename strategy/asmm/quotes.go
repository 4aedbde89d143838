package asmm

import (
	"math"

	"market-maker-sim/market"
)

// 非法输入的回退常量。
const (
	DefaultSigma   = 1e-6
	DefaultGamma   = 1e-3
	DefaultK       = 1.5
	DefaultHorizon = 1.0
	DefaultTick    = 0.01

	snapEps = 1e-9
)

// Quote 一组双边报价。
type Quote struct {
	Bid         float64
	Ask         float64
	Reservation float64
	HalfSpread  float64
}

// Width 返回 ask-bid。
func (q Quote) Width() float64 { return q.Ask - q.Bid }

// OptimalQuotes 计算 Avellaneda-Stoikov 最优报价：
//
//	r = mid - q·γ·σ²·T
//	h = max(tick, (1/γ)·ln(1+γ/k))
//
// bid 向下、ask 向上取整到 tick，并保证 bid < ask。
// 任何非有限或非正参数都会被替换为回退常量，结果永不含 NaN。
func OptimalQuotes(mid float64, inventory int64, sigma, gamma, k, horizon, tick float64) Quote {
	mid = finiteOr(mid, 0)
	sigma = positiveOr(math.Abs(sigma), DefaultSigma)
	gamma = positiveOr(math.Abs(gamma), DefaultGamma)
	k = positiveOr(math.Abs(k), DefaultK)
	horizon = math.Max(finiteOr(horizon, DefaultHorizon), 1e-6)
	tick = math.Max(positiveOr(math.Abs(tick), DefaultTick), market.MinTick)

	r := mid - float64(inventory)*gamma*sigma*sigma*horizon
	if !isFinite(r) {
		r = mid
	}
	half := (1 / gamma) * math.Log(1+gamma/k)
	if !isFinite(half) {
		half = 0.01 * math.Max(1, mid)
	}
	half = math.Max(half, tick)

	return Quote{
		Bid:         snapBid(r-half, tick, mid),
		Ask:         snapAsk(r+half, tick, mid),
		Reservation: r,
		HalfSpread:  half,
	}.ordered(tick)
}

// ordered 取整后若出现 bid >= ask，将 ask 推到 bid 上方一个 tick（至少一个价格精度）。
func (q Quote) ordered(tick float64) Quote {
	if q.Ask > q.Bid {
		return q
	}
	step := math.Max(tick, market.MinTick)
	q.Ask = market.NormalizePrice(q.Bid + step)
	if !(q.Ask > q.Bid) {
		// 超大价格下精度格比 step 更粗
		q.Ask = math.Nextafter(q.Bid+step, math.Inf(1))
	}
	return q
}

func snapBid(x, tick, mid float64) float64 {
	if !isFinite(x) {
		x = mid - tick
	}
	v := math.Floor(x/tick+snapEps) * tick
	if !isFinite(v) {
		v = mid - tick
	}
	return market.NormalizePrice(v)
}

func snapAsk(x, tick, mid float64) float64 {
	if !isFinite(x) {
		x = mid + tick
	}
	v := math.Ceil(x/tick-snapEps) * tick
	if !isFinite(v) {
		v = mid + tick
	}
	return market.NormalizePrice(v)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return v
}

func positiveOr(v, fallback float64) float64 {
	if !isFinite(v) || v <= 0 {
		return fallback
	}
	return v
}
