package market

import (
	"math"
	"sort"
	"sync"
)

const (
	// DefaultLevels 冷启动每侧铺设的档位数。
	DefaultLevels = 5
	// seedQty 冷启动每档数量。
	seedQty int64 = 200
	// pricePrecision 价格统一归一到 1e-6，保证 map key 可比较。
	pricePrecision = 1e6
	// MinTick 为价格精度对应的最小可区分价差，更小的 tick 会在归一后塌缩。
	MinTick = 1 / pricePrecision
)

// NormalizePrice 将价格归一到固定精度。
func NormalizePrice(p float64) float64 {
	return math.Round(p*pricePrecision) / pricePrecision
}

// Order 为簿内订单；prev/next 构成同价位 FIFO 链表。
type Order struct {
	ID    OrderID
	Owner Owner
	Side  Side
	Price float64
	Qty   int64
	Ts    int64

	prev OrderID
	next OrderID
}

// Level 是对外暴露的价位聚合。
type Level struct {
	Price float64
	Qty   int64
}

type priceLevel struct {
	price float64
	qty   int64
	count int
	head  OrderID
	tail  OrderID
}

type bookSide struct {
	side   Side
	levels map[float64]*priceLevel
	prices []float64 // 优先级顺序，prices[0] 为最优价
}

func newBookSide(side Side) *bookSide {
	return &bookSide{side: side, levels: make(map[float64]*priceLevel)}
}

// better 判断 a 是否优先于 b。
func (s *bookSide) better(a, b float64) bool {
	if s.side == Buy {
		return a > b
	}
	return a < b
}

func (s *bookSide) search(p float64) int {
	return sort.Search(len(s.prices), func(i int) bool { return !s.better(s.prices[i], p) })
}

func (s *bookSide) level(p float64) *priceLevel {
	if lv, ok := s.levels[p]; ok {
		return lv
	}
	lv := &priceLevel{price: p}
	s.levels[p] = lv
	i := s.search(p)
	s.prices = append(s.prices, 0)
	copy(s.prices[i+1:], s.prices[i:])
	s.prices[i] = p
	return lv
}

func (s *bookSide) remove(p float64) {
	delete(s.levels, p)
	i := s.search(p)
	if i < len(s.prices) && s.prices[i] == p {
		s.prices = append(s.prices[:i], s.prices[i+1:]...)
	}
}

func (s *bookSide) best() (*priceLevel, bool) {
	if len(s.prices) == 0 {
		return nil, false
	}
	return s.levels[s.prices[0]], true
}

// OrderBook 单一 venue 单一 symbol 的价格-时间优先订单簿。
// 订单存放在 arena 中，价位只保存链表首尾 id，撤单 O(1)。
type OrderBook struct {
	mu     sync.RWMutex
	tick   float64
	nextID OrderID
	orders map[OrderID]*Order
	bids   *bookSide
	asks   *bookSide
}

// NewOrderBook 以 mid 为中心铺设 levels 档外部流动性，避免冷启动空簿。
func NewOrderBook(mid, tick float64, levels int) *OrderBook {
	if !(tick > 0) || math.IsInf(tick, 0) {
		tick = 0.01
	}
	ob := &OrderBook{
		tick:   tick,
		nextID: 1,
		orders: make(map[OrderID]*Order),
		bids:   newBookSide(Buy),
		asks:   newBookSide(Sell),
	}
	if mid > 0 && !math.IsInf(mid, 0) {
		for i := 1; i <= levels; i++ {
			off := float64(i) * tick
			ob.PlaceLimit(OwnerLiquidity, Buy, mid-off, seedQty, -1)
			ob.PlaceLimit(OwnerLiquidity, Sell, mid+off, seedQty, -1)
		}
	}
	return ob
}

// Replenish 为空的一侧补铺 levels 档外部流动性，返回新建订单数。
// 一侧仍有挂单时以其最优价为锚，避免交叉；两侧皆空时以 ref 为中心。
func (ob *OrderBook) Replenish(ref float64, levels int) int {
	if levels <= 0 {
		return 0
	}
	bid, okb := ob.BestBid()
	ask, oka := ob.BestAsk()
	placed := 0
	place := func(side Side, price float64) {
		if price > 0 && ob.PlaceLimit(OwnerLiquidity, side, price, seedQty, -1) != 0 {
			placed++
		}
	}
	switch {
	case okb && oka:
	case okb:
		for i := 1; i <= levels; i++ {
			place(Sell, bid.Price+float64(i)*ob.tick)
		}
	case oka:
		for i := 1; i <= levels; i++ {
			place(Buy, ask.Price-float64(i)*ob.tick)
		}
	default:
		if !(ref > 0) || math.IsInf(ref, 0) {
			return 0
		}
		for i := 1; i <= levels; i++ {
			off := float64(i) * ob.tick
			place(Buy, ref-off)
			place(Sell, ref+off)
		}
	}
	return placed
}

// Tick 返回簿的最小价位。
func (ob *OrderBook) Tick() float64 { return ob.tick }

func (ob *OrderBook) sideOf(s Side) *bookSide {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// PlaceLimit 在价位队尾挂单。qty<=0 时不建单，返回 0。
func (ob *OrderBook) PlaceLimit(owner Owner, side Side, price float64, qty int64, ts int64) OrderID {
	if qty <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	ob.mu.Lock()
	defer ob.mu.Unlock()

	id := ob.nextID
	ob.nextID++
	p := NormalizePrice(price)
	o := &Order{ID: id, Owner: owner, Side: side, Price: p, Qty: qty, Ts: ts}
	ob.orders[id] = o

	lv := ob.sideOf(side).level(p)
	if lv.tail != 0 {
		ob.orders[lv.tail].next = id
		o.prev = lv.tail
	} else {
		lv.head = id
	}
	lv.tail = id
	lv.qty += qty
	lv.count++
	return id
}

// Cancel 撤单；未知或已成交的 id 返回 false。
func (ob *OrderBook) Cancel(id OrderID) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	o, ok := ob.orders[id]
	if !ok {
		return false
	}
	ob.unlink(o)
	return true
}

// unlink 将订单从价位链表和 arena 中摘除，空价位随之删除。
func (ob *OrderBook) unlink(o *Order) {
	bs := ob.sideOf(o.Side)
	lv := bs.levels[o.Price]
	if o.prev != 0 {
		ob.orders[o.prev].next = o.next
	} else {
		lv.head = o.next
	}
	if o.next != 0 {
		ob.orders[o.next].prev = o.prev
	} else {
		lv.tail = o.prev
	}
	lv.qty -= o.Qty
	lv.count--
	delete(ob.orders, o.ID)
	if lv.count == 0 {
		bs.remove(lv.price)
	}
}

// PlaceMarket 按最优价、同价位先到先成交逐档吃单，直至数量满足或对手盘耗尽。
// 未成交余量直接丢弃，不会转成挂单。
func (ob *OrderBook) PlaceMarket(owner Owner, side Side, qty int64) []Fill {
	if qty <= 0 {
		return nil
	}
	ob.mu.Lock()
	defer ob.mu.Unlock()

	opp := ob.sideOf(side.Opposite())
	var fills []Fill
	remaining := qty
	for remaining > 0 {
		lv, ok := opp.best()
		if !ok {
			break
		}
		for remaining > 0 && lv.head != 0 {
			maker := ob.orders[lv.head]
			take := min(remaining, maker.Qty)
			fills = append(fills, Fill{
				MakerID:    maker.ID,
				MakerOwner: maker.Owner,
				Side:       maker.Side,
				Price:      lv.price,
				Qty:        take,
			})
			remaining -= take
			if take == maker.Qty {
				ob.unlink(maker)
				if lv.count == 0 {
					break
				}
				continue
			}
			maker.Qty -= take
			lv.qty -= take
		}
	}
	return fills
}

// BestBid 返回最优买价及该档总量。
func (ob *OrderBook) BestBid() (Level, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	lv, ok := ob.bids.best()
	if !ok {
		return Level{}, false
	}
	return Level{Price: lv.price, Qty: lv.qty}, true
}

// BestAsk 返回最优卖价及该档总量。
func (ob *OrderBook) BestAsk() (Level, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	lv, ok := ob.asks.best()
	if !ok {
		return Level{}, false
	}
	return Level{Price: lv.price, Qty: lv.qty}, true
}

// Mid 返回中间价；任一侧为空时返回 0。
func (ob *OrderBook) Mid() float64 {
	bid, okb := ob.BestBid()
	ask, oka := ob.BestAsk()
	if !okb || !oka {
		return 0
	}
	return NormalizePrice((bid.Price + ask.Price) / 2)
}

// ShiftPrices 将全部挂单价格整体平移 delta（模拟冲击）。
func (ob *OrderBook) ShiftPrices(delta float64) {
	if delta == 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return
	}
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.shiftSide(ob.bids, delta)
	ob.shiftSide(ob.asks, delta)
}

func (ob *OrderBook) shiftSide(bs *bookSide, delta float64) {
	levels := make(map[float64]*priceLevel, len(bs.levels))
	prices := make([]float64, 0, len(bs.prices))
	for _, old := range bs.prices {
		lv := bs.levels[old]
		p := NormalizePrice(old + delta)
		for id := lv.head; id != 0; id = ob.orders[id].next {
			ob.orders[id].Price = p
		}
		lv.price = p
		if dst, ok := levels[p]; ok {
			// 平移后两档落在同一精度格：拼接到已有价位队尾
			ob.orders[dst.tail].next = lv.head
			ob.orders[lv.head].prev = dst.tail
			dst.tail = lv.tail
			dst.qty += lv.qty
			dst.count += lv.count
			continue
		}
		levels[p] = lv
		prices = append(prices, p)
	}
	bs.levels = levels
	bs.prices = prices
}

// Order 按 id 查询挂单快照。
func (ob *OrderBook) Order(id OrderID) (Order, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	o, ok := ob.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Len 返回当前存活订单数。
func (ob *OrderBook) Len() int {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return len(ob.orders)
}
