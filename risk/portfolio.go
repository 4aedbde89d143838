package risk

import "math"

const (
	// DefaultVaRWindow 每个 symbol 读取的 mid 差分个数。
	DefaultVaRWindow = 50
	// MinAlignedSamples 跨 symbol 对齐样本数下限，不足时 VaR 为 0。
	MinAlignedSamples = 10
	// VaRZ 95% 单侧正态分位数。
	VaRZ = 1.65

	covClip = 1e4
)

// Exposure 单个 symbol 的库存与逐步 mid 变化。
type Exposure struct {
	Symbol    string
	Inventory int64
	Changes   []float64
}

// Decision 一步的组合风险评估结果。
type Decision struct {
	VaR    float64
	Breach bool
	Hedge  bool
}

// PortfolioEngine 跨 symbol 的参数化 VaR 与对冲触发。
type PortfolioEngine struct {
	Window        int
	Limit         float64
	HedgeOnBreach bool
	HedgeFraction float64
}

func NewPortfolioEngine(window int, limit float64, hedgeOnBreach bool, fraction float64) PortfolioEngine {
	if window <= 0 {
		window = DefaultVaRWindow
	}
	return PortfolioEngine{Window: window, Limit: limit, HedgeOnBreach: hedgeOnBreach, HedgeFraction: fraction}
}

// VaR = 1.65·sqrt(qᵀΣq)，Σ 为对齐后的 mid 差分样本协方差（N-1）。
// 任一 symbol 少于 2 个差分或对齐样本少于 10 个时返回 0；
// 非有限值视为 0，协方差截断到 ±1e4，方差非正或非有限时返回 0。
func (e PortfolioEngine) VaR(exposures []Exposure) float64 {
	if len(exposures) == 0 {
		return 0
	}
	window := e.Window
	if window <= 0 {
		window = DefaultVaRWindow
	}
	n := -1
	for _, ex := range exposures {
		l := min(len(ex.Changes), window)
		if l < 2 {
			return 0
		}
		if n < 0 || l < n {
			n = l
		}
	}
	if n < MinAlignedSamples {
		return 0
	}

	d := len(exposures)
	x := make([][]float64, d)
	means := make([]float64, d)
	for i, ex := range exposures {
		row := make([]float64, n)
		tail := ex.Changes[len(ex.Changes)-n:]
		for j, v := range tail {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			row[j] = v
			means[i] += v
		}
		means[i] /= float64(n)
		x[i] = row
	}

	variance := 0.0
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			c := 0.0
			for t := 0; t < n; t++ {
				c += (x[i][t] - means[i]) * (x[j][t] - means[j])
			}
			c = clipCov(c / float64(n-1))
			term := float64(exposures[i].Inventory) * c * float64(exposures[j].Inventory)
			if i != j {
				term *= 2
			}
			variance += term
		}
	}
	if math.IsNaN(variance) || math.IsInf(variance, 0) || variance <= 0 {
		return 0
	}
	return VaRZ * math.Sqrt(variance)
}

// Evaluate 计算 VaR 并判断是否超限、是否需要对冲。
func (e PortfolioEngine) Evaluate(exposures []Exposure) Decision {
	v := e.VaR(exposures)
	breach := v > e.Limit
	return Decision{
		VaR:    v,
		Breach: breach,
		Hedge:  breach && e.HedgeOnBreach && e.HedgeFraction > 0,
	}
}

func clipCov(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return math.Max(-covClip, math.Min(covClip, c))
}
