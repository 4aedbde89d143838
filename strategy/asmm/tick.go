package asmm

import (
	"fmt"
	"math"

	"market-maker-sim/market"
)

// TickSizer 按已实现波动率在线性区间内调整报价 tick。
type TickSizer struct {
	Enabled bool    `yaml:"enabled"`
	MinTick float64 `yaml:"min_tick"`
	MaxTick float64 `yaml:"max_tick"`
	VolLow  float64 `yaml:"vol_low"`
	VolHigh float64 `yaml:"vol_high"`
}

func DefaultTickSizer() TickSizer {
	return TickSizer{
		Enabled: true,
		MinTick: 0.005,
		MaxTick: 0.05,
		VolLow:  0.0005,
		VolHigh: 0.01,
	}
}

// Effective 返回当前波动率下的 tick，保留 4 位小数。
// vol 先截断到 [VolLow, VolHigh]，未启用时直接返回 baseTick。
func (ts TickSizer) Effective(vol, baseTick float64) float64 {
	if !ts.Enabled {
		return baseTick
	}
	if math.IsNaN(vol) {
		vol = ts.VolLow
	}
	v := math.Max(ts.VolLow, math.Min(vol, ts.VolHigh))
	x := (v - ts.VolLow) / math.Max(1e-9, ts.VolHigh-ts.VolLow)
	tick := math.Round((ts.MinTick+x*(ts.MaxTick-ts.MinTick))*1e4) / 1e4
	if tick <= 0 {
		return baseTick
	}
	return tick
}

func (ts TickSizer) Validate() error {
	if !ts.Enabled {
		return nil
	}
	if !positive(ts.MinTick) || ts.MinTick < market.MinTick || ts.MaxTick < ts.MinTick {
		return fmt.Errorf("%w: tick bounds [%v, %v]", ErrInvalidParams, ts.MinTick, ts.MaxTick)
	}
	if ts.VolLow < 0 || ts.VolHigh < ts.VolLow {
		return fmt.Errorf("%w: vol thresholds [%v, %v]", ErrInvalidParams, ts.VolLow, ts.VolHigh)
	}
	return nil
}
