package flow

import (
	"math"
	"math/rand"
)

const (
	minIntensity = 1e-6
	maxSampleLam = 10.0
)

// Hawkes 一维离散化自激强度：
//
//	λ ← μ + α·n_prev + (1-β)·(λ - μ)
type Hawkes struct {
	Mu    float64
	Alpha float64
	Beta  float64

	lambda float64
}

// NewHawkes 初始强度为 μ。
func NewHawkes(mu, alpha, beta float64) *Hawkes {
	h := &Hawkes{Mu: mu, Alpha: alpha, Beta: beta}
	h.lambda = math.Max(minIntensity, sanitize(mu))
	return h
}

// StepIntensity 用上一步事件数推进强度并返回新值，下限 1e-6。
func (h *Hawkes) StepIntensity(nPrev int) float64 {
	lam := h.Mu + h.Alpha*float64(nPrev) + (1-h.Beta)*(h.lambda-h.Mu)
	h.lambda = math.Max(minIntensity, sanitize(lam))
	return h.lambda
}

// Intensity 当前强度。
func (h *Hawkes) Intensity() float64 { return h.lambda }

// SampleEvents 以截断泊松近似抽取本步事件数：0、1 或 2（代表 2 个及以上）。
// λ 上限 10。
func (h *Hawkes) SampleEvents(rng *rand.Rand) int {
	lam := math.Min(h.lambda, maxSampleLam)
	p0 := math.Exp(-lam)
	p1 := lam * p0
	u := rng.Float64()
	switch {
	case u < p0:
		return 0
	case u < p0+p1:
		return 1
	default:
		return 2
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
