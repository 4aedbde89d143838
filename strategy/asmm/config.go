package asmm

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams 参数校验失败。
var ErrInvalidParams = errors.New("asmm: invalid params")

// Params holds the Avellaneda-Stoikov model inputs and the quoting mode.
type Params struct {
	UseAvellaneda bool    `yaml:"use_avellaneda"`
	Gamma         float64 `yaml:"gamma"`
	K             float64 `yaml:"k"`
	Horizon       float64 `yaml:"horizon"`

	// 简化模型参数（UseAvellaneda=false 时生效）
	BaseSpreadBps float64 `yaml:"base_spread_bps"`
	SkewK         float64 `yaml:"skew_k"`

	Tick TickSizer `yaml:"adaptive_tick"`
}

// DefaultParams returns the default model parameters.
func DefaultParams() Params {
	return Params{
		UseAvellaneda: true,
		Gamma:         DefaultGamma,
		K:             DefaultK,
		Horizon:       DefaultHorizon,
		BaseSpreadBps: 5,
		SkewK:         0.8,
		Tick:          DefaultTickSizer(),
	}
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if !positive(p.Gamma) {
		return fmt.Errorf("%w: gamma must be > 0, got %v", ErrInvalidParams, p.Gamma)
	}
	if !positive(p.K) {
		return fmt.Errorf("%w: k must be > 0, got %v", ErrInvalidParams, p.K)
	}
	if !positive(p.Horizon) {
		return fmt.Errorf("%w: horizon must be > 0, got %v", ErrInvalidParams, p.Horizon)
	}
	if p.BaseSpreadBps < 0 || p.SkewK < 0 {
		return fmt.Errorf("%w: base_spread_bps and skew_k must be >= 0", ErrInvalidParams)
	}
	return p.Tick.Validate()
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
