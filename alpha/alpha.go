// Package alpha 提供每个 symbol 每一步的有界 alpha 信号。
package alpha

import (
	"math"
	"sync"
)

// Bound alpha 的绝对值上限。
const Bound = 1.0

// Provider 返回 symbol 在 step 时的 alpha，取值 [-Bound, Bound]。
// 同一 symbol 的调用按 step 递增；不同 symbol 可并发调用。
type Provider interface {
	Alpha(symbol string, step int64) float64
}

// Source 产生原始打分脉冲；某一步没有事件时返回空。
type Source interface {
	Scores(symbol string, step int64) []float64
}

// Constant 对所有 symbol 返回固定 alpha。
type Constant float64

func (c Constant) Alpha(string, int64) float64 { return clamp(float64(c)) }

// Smoother 对 Source 的脉冲做指数平滑：last = (1-s)·last + s·score。
// 无事件的步保持上一值。
type Smoother struct {
	source Source
	smooth float64

	mu   sync.Mutex
	last map[string]float64
}

// NewSmoother smooth 不在 (0,1] 时取 0.2。
func NewSmoother(source Source, smooth float64) *Smoother {
	if !(smooth > 0 && smooth <= 1) {
		smooth = 0.2
	}
	return &Smoother{source: source, smooth: smooth, last: make(map[string]float64)}
}

func (s *Smoother) Alpha(symbol string, step int64) float64 {
	var scores []float64
	if s.source != nil {
		scores = s.source.Scores(symbol, step)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.last[symbol]
	for _, sc := range scores {
		if math.IsNaN(sc) || math.IsInf(sc, 0) {
			continue
		}
		v = (1-s.smooth)*v + s.smooth*sc
	}
	v = clamp(v)
	s.last[symbol] = v
	return v
}

// Last 最近一次平滑值。
func (s *Smoother) Last(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[symbol]
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-Bound, math.Min(Bound, v))
}
