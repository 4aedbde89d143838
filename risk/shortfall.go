package risk

import (
	"math"
	"sort"
)

const (
	DefaultESWindow = 100
	DefaultESConf   = 0.95
)

// ExpectedShortfall 返回 returns 中不高于 (1-conf) 分位数部分的均值（损失为负）。
func ExpectedShortfall(returns []float64, conf float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	q := quantile(returns, 1-conf)
	sum, n := 0.0, 0
	for _, r := range returns {
		if r <= q {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// RollingES 以 mid 历史构造累计变化序列，计算最近一点的滚动 ES：
// 取最新差分之前的 window 个差分。历史不足 window+1 个点时返回 0。
func RollingES(mids []float64, window int, conf float64) float64 {
	if window <= 0 {
		window = DefaultESWindow
	}
	if len(mids) < window+1 {
		return 0
	}
	// rets[0] = 0，rets[i] = mids[i]-mids[i-1]
	last := len(mids) - 1
	rets := make([]float64, 0, window)
	for i := last - window; i < last; i++ {
		if i == 0 {
			rets = append(rets, 0)
			continue
		}
		r := mids[i] - mids[i-1]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			r = 0
		}
		rets = append(rets, r)
	}
	return ExpectedShortfall(rets, conf)
}

// quantile 线性插值分位数。
func quantile(values []float64, p float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	p = math.Max(0, math.Min(1, p))
	pos := p * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	return s[lo] + (s[hi]-s[lo])*(pos-float64(lo))
}
