package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedShortfall(t *testing.T) {
	assert.Equal(t, 0.0, ExpectedShortfall(nil, 0.95))

	rets := make([]float64, 0, 20)
	for i := 1; i <= 20; i++ {
		rets = append(rets, float64(i-10))
	}
	// 5% 分位数 = -9 + 0.95·1 = -8.05，尾部只有 -9
	assert.InDelta(t, -9, ExpectedShortfall(rets, 0.95), 1e-12)
	// 50% 分位数 = 0.5，尾部为 -9..0
	assert.InDelta(t, -4.5, ExpectedShortfall(rets, 0.5), 1e-12)
}

func TestRollingES(t *testing.T) {
	mids := []float64{100, 101, 99, 100, 98}
	assert.Equal(t, 0.0, RollingES(mids, 5, 0.95))

	// window=4：使用最新差分之前的 4 个收益 [0, 1, -2, 1]
	got := RollingES(mids, 4, 0.5)
	assert.InDelta(t, -1, got, 1e-12)

	flat := make([]float64, 150)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, 0.0, RollingES(flat, DefaultESWindow, DefaultESConf))
}
