package router

import (
	"market-maker-sim/maker"
	"market-maker-sim/market"
)

// VenueConfig 单个 venue 的费率与延迟。费率单位 bps，maker 费为负表示返佣。
type VenueConfig struct {
	Name        string  `yaml:"name"`
	MakerFeeBps float64 `yaml:"maker_fee_bps"`
	TakerFeeBps float64 `yaml:"taker_fee_bps"`
	LatencyMs   int     `yaml:"latency_ms"`
}

// Venue 一个 venue 上的订单簿与做市实例。LatencyMs 仅作信息展示。
type Venue struct {
	Name        string
	Book        *market.OrderBook
	MM          *maker.MarketMaker
	MakerFeeBps float64
	TakerFeeBps float64
	LatencyMs   int
}
