package alpha

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Event 预设的一次打分事件。
type Event struct {
	Step  int64   `yaml:"step"`
	Score float64 `yaml:"score"`
}

// Schedule 按 step 回放预设事件。
type Schedule struct {
	events map[string][]Event
}

// NewSchedule 复制并按 step 排序事件。
func NewSchedule(events map[string][]Event) *Schedule {
	s := &Schedule{events: make(map[string][]Event, len(events))}
	for sym, evs := range events {
		cp := append([]Event(nil), evs...)
		sort.SliceStable(cp, func(i, j int) bool { return cp[i].Step < cp[j].Step })
		s.events[sym] = cp
	}
	return s
}

func (s *Schedule) Scores(symbol string, step int64) []float64 {
	evs := s.events[symbol]
	i := sort.Search(len(evs), func(i int) bool { return evs[i].Step >= step })
	var out []float64
	for ; i < len(evs) && evs[i].Step == step; i++ {
		out = append(out, evs[i].Score)
	}
	return out
}

// Noise 每个 symbol 一条均值回复的随机打分序列：
//
//	x ← x - θ·x + σ·N(0,1)，截断到 [-Bound, Bound]
type Noise struct {
	theta float64
	sigma float64
	seed  int64

	mu    sync.Mutex
	state map[string]*noiseState
}

type noiseState struct {
	rng *rand.Rand
	x   float64
}

func NewNoise(theta, sigma float64, seed int64) *Noise {
	return &Noise{theta: theta, sigma: sigma, seed: seed, state: make(map[string]*noiseState)}
}

func (n *Noise) Scores(symbol string, _ int64) []float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	st, ok := n.state[symbol]
	if !ok {
		st = &noiseState{rng: rand.New(rand.NewSource(n.seed ^ int64(fnv(symbol))))}
		n.state[symbol] = st
	}
	st.x = st.x - n.theta*st.x + n.sigma*st.rng.NormFloat64()
	st.x = math.Max(-Bound, math.Min(Bound, st.x))
	return []float64{st.x}
}

func fnv(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
