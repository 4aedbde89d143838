package router

import (
	"sort"
	"sync"
)

// DefaultLookback 每个 venue 保留的历史结果数。
const DefaultLookback = 200

// VenueStats venue 的累计成交统计。
type VenueStats struct {
	Fills         int
	Notional      float64
	SpreadCapture float64
	MakerRebate   float64
	AdverseMoves  float64
}

// outcomes 定长环形缓冲；同一 venue 的更新在自身锁内串行。
type outcomes struct {
	mu    sync.Mutex
	buf   []float64
	next  int
	n     int
	stats VenueStats
}

func (o *outcomes) push(v float64) {
	o.buf[o.next] = v
	o.next = (o.next + 1) % len(o.buf)
	if o.n < len(o.buf) {
		o.n++
	}
}

func (o *outcomes) mean() float64 {
	if o.n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < o.n; i++ {
		sum += o.buf[i]
	}
	return sum / float64(o.n)
}

// Selector 按 venue 近期实现收益的均值（EV）挑选报价 venue。
type Selector struct {
	lookback int
	mu       sync.RWMutex
	venues   map[string]*outcomes
}

func NewSelector(lookback int) *Selector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Selector{lookback: lookback, venues: make(map[string]*outcomes)}
}

func (s *Selector) get(venue string) *outcomes {
	s.mu.RLock()
	o, ok := s.venues[venue]
	s.mu.RUnlock()
	if ok {
		return o
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok = s.venues[venue]; !ok {
		o = &outcomes{buf: make([]float64, s.lookback)}
		s.venues[venue] = o
	}
	return o
}

// Update 记录一笔成交结果：ev = spreadCapture + rebate - adverse。
func (s *Selector) Update(venue string, spreadCapture, notional, rebate, adverse float64) {
	o := s.get(venue)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.Fills++
	o.stats.Notional += notional
	o.stats.SpreadCapture += spreadCapture
	o.stats.MakerRebate += rebate
	o.stats.AdverseMoves += adverse
	o.push(spreadCapture + rebate - adverse)
}

// ExpectedValue 返回历史均值；无历史为 0。
func (s *Selector) ExpectedValue(venue string) float64 {
	s.mu.RLock()
	o, ok := s.venues[venue]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mean()
}

// Samples 当前保留的历史条数。
func (s *Selector) Samples(venue string) int {
	s.mu.RLock()
	o, ok := s.venues[venue]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.n
}

func (s *Selector) Stats(venue string) VenueStats {
	s.mu.RLock()
	o, ok := s.venues[venue]
	s.mu.RUnlock()
	if !ok {
		return VenueStats{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Pick 按 EV 降序返回前 k 个 venue，EV 相同保持输入顺序；k<=0 或超出时返回全部。
func (s *Selector) Pick(names []string, k int) []string {
	type scored struct {
		name string
		ev   float64
	}
	scores := make([]scored, len(names))
	for i, n := range names {
		scores[i] = scored{name: n, ev: s.ExpectedValue(n)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].ev > scores[j].ev })
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = scores[i].name
	}
	return out
}
