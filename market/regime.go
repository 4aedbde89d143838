package market

import "math/rand"

// Regime 外部流的隐含市场状态。
type Regime int

const (
	RegimeCalm Regime = iota
	RegimeStress
)

func (r Regime) String() string {
	if r == RegimeStress {
		return "STRESS"
	}
	return "CALM"
}

const (
	DefaultStayCalm   = 0.95
	DefaultStayStress = 0.9
	// StressFlowMultiplier STRESS 状态下外部事件数放大倍数。
	StressFlowMultiplier = 2.0
)

// RegimeSwitch 两状态马尔可夫链，平静态默认更“粘”。
type RegimeSwitch struct {
	stayCalm   float64
	stayStress float64
	state      Regime
	rng        *rand.Rand
}

// NewRegimeSwitch 概率非法（不在 [0,1]）时使用默认值。
func NewRegimeSwitch(stayCalm, stayStress float64, rng *rand.Rand) *RegimeSwitch {
	if !(stayCalm >= 0 && stayCalm <= 1) {
		stayCalm = DefaultStayCalm
	}
	if !(stayStress >= 0 && stayStress <= 1) {
		stayStress = DefaultStayStress
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &RegimeSwitch{stayCalm: stayCalm, stayStress: stayStress, state: RegimeCalm, rng: rng}
}

// Step 推进一步并返回新状态。
func (r *RegimeSwitch) Step() Regime {
	u := r.rng.Float64()
	switch r.state {
	case RegimeCalm:
		if u > r.stayCalm {
			r.state = RegimeStress
		}
	default:
		if u > r.stayStress {
			r.state = RegimeCalm
		}
	}
	return r.state
}

// State 返回当前状态。
func (r *RegimeSwitch) State() Regime { return r.state }

// FlowMultiplier 当前状态下的外部事件倍数。
func (r *RegimeSwitch) FlowMultiplier() float64 {
	if r.state == RegimeStress {
		return StressFlowMultiplier
	}
	return 1
}

// MarshalText 以 CALM/STRESS 文本序列化。
func (r Regime) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
