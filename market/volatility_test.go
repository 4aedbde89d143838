package market

import (
	"math"
	"testing"
)

func TestRealizedVol(t *testing.T) {
	if v := RealizedVol(nil, 10); v != 0 {
		t.Errorf("empty history should give 0, got %f", v)
	}
	if v := RealizedVol([]float64{100}, 10); v != 0 {
		t.Errorf("single price should give 0, got %f", v)
	}
	flat := []float64{100, 100, 100, 100}
	if v := RealizedVol(flat, 10); v != 0 {
		t.Errorf("flat prices should give 0, got %f", v)
	}

	// 收益率 +1%/-1% 交替：均值 0，总体标准差 0.01
	alt := []float64{100, 101, 99.99, 100.9899, 99.980001}
	v := RealizedVol(alt, 10)
	if math.Abs(v-0.01*AnnualizationFactor) > 1e-6 {
		t.Errorf("unexpected vol %f", v)
	}
}

func TestRealizedVolSanitizesInput(t *testing.T) {
	prices := []float64{100, math.NaN(), math.Inf(1), 0, -5, 100}
	v := RealizedVol(prices, 10)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		t.Fatalf("vol must be finite and non-negative, got %f", v)
	}
	// 单步收益率被截断到 ±10%
	if v > maxStepReturn*AnnualizationFactor {
		t.Fatalf("vol %f exceeds clipped bound", v)
	}
}
