package market

import "math"

const (
	// AnnualizationFactor 年化系数 sqrt(252)。
	AnnualizationFactor = 15.874507866387544
	// DefaultVolWindow 计算波动率使用的收益率个数。
	DefaultVolWindow = 50
	// maxStepReturn 单步收益率截断，防止异常跳价放大波动率。
	maxStepReturn = 0.1
)

// RealizedVol 计算最近 window 个简单收益率的年化标准差。
// 价格先做清洗：非有限值视为 1，截断到 [0.01, 1e6]。样本不足返回 0。
func RealizedVol(prices []float64, window int) float64 {
	if window <= 0 {
		window = DefaultVolWindow
	}
	if len(prices) > window+1 {
		prices = prices[len(prices)-window-1:]
	}
	if len(prices) < 2 {
		return 0
	}
	rets := make([]float64, 0, len(prices)-1)
	prev := cleanPrice(prices[0])
	for _, raw := range prices[1:] {
		p := cleanPrice(raw)
		r := (p - prev) / prev
		rets = append(rets, math.Max(-maxStepReturn, math.Min(maxStepReturn, r)))
		prev = p
	}

	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))
	vol := math.Sqrt(variance) * AnnualizationFactor
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0
	}
	return vol
}

func cleanPrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 1
	}
	return math.Max(0.01, math.Min(1e6, p))
}
