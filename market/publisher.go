package market

import "sync"

// Role 成交角色。
type Role string

const (
	RoleMaker Role = "maker"
	RoleTaker Role = "taker"
)

// Execution 做市商自身成交回报，供路由评分与下游报表消费。
type Execution struct {
	Venue         string  `json:"venue"`
	Role          Role    `json:"role"`
	Side          Side    `json:"side"`
	Qty           int64   `json:"qty"`
	Price         float64 `json:"price"`
	MidAtFill     float64 `json:"mid"`
	FeeBps        float64 `json:"fee_bps"`
	Fee           float64 `json:"fee"`
	SpreadCapture float64 `json:"spread_capture"`
	Symbol        string  `json:"symbol"`
}

// ExecPublisher 是有序、不丢弃的成交事件队列。
// 做市商发布，路由器在每步结束时 Drain，顺序与发布顺序一致。
type ExecPublisher struct {
	mu    sync.Mutex
	queue []Execution
}

func NewExecPublisher() *ExecPublisher {
	return &ExecPublisher{}
}

// Publish 追加一条成交。nil publisher 上调用为 no-op。
func (p *ExecPublisher) Publish(e Execution) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, e)
	p.mu.Unlock()
}

// Drain 取出并清空当前队列。
func (p *ExecPublisher) Drain() []Execution {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.queue
	p.queue = nil
	return out
}

// Len 返回待消费条数。
func (p *ExecPublisher) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
