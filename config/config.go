// Package config 加载并校验仿真配置（YAML + 环境变量覆盖）。
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"market-maker-sim/alpha"
	"market-maker-sim/infrastructure/logger"
	"market-maker-sim/inventory"
	"market-maker-sim/maker"
	"market-maker-sim/market"
	"market-maker-sim/risk"
	"market-maker-sim/router"
	"market-maker-sim/sim"
	"market-maker-sim/strategy/asmm"
)

// ErrInvalid 配置校验失败的哨兵错误。
var ErrInvalid = errors.New("config: invalid")

// 环境变量覆盖项。
const (
	EnvSteps       = "MMSIM_STEPS"
	EnvSeed        = "MMSIM_SEED"
	EnvMetricsAddr = "MMSIM_METRICS_ADDR"
)

// alpha 信号来源。
const (
	AlphaSchedule = "schedule"
	AlphaNoise    = "noise"
	AlphaConstant = "constant"
)

// SimConfig 仿真运行的全部配置；运行期间不可变。
type SimConfig struct {
	Symbols        []string             `yaml:"symbols"`
	Steps          int64                `yaml:"n_steps"`
	Seed           int64                `yaml:"seed"`
	Parallel       bool                 `yaml:"parallel"`
	StartPrice     float64              `yaml:"start_price"`
	TickSize       float64              `yaml:"tick_size"`
	BookLevels     int                  `yaml:"book_levels"`
	QuoteSize      int64                `yaml:"quote_size"`
	InventoryLimit int64                `yaml:"inventory_limit"`
	VolWindow      int                  `yaml:"vol_window"`
	RouterTopK     int                  `yaml:"router_top_k"`
	Lookback       int                  `yaml:"router_lookback"`
	ImpactKappa    float64              `yaml:"impact_kappa"`
	LogEvery       int                  `yaml:"log_every"`
	Model          asmm.Params          `yaml:"model"`
	Venues         []router.VenueConfig `yaml:"venues"`
	Hawkes         HawkesConfig         `yaml:"hawkes"`
	Regime         RegimeConfig         `yaml:"regime"`
	Risk           RiskConfig           `yaml:"risk"`
	Alpha          AlphaConfig          `yaml:"alpha"`
	Log            logger.Config        `yaml:"log"`
	Server         ServerConfig         `yaml:"server"`
	Alerts         AlertConfig          `yaml:"alerts"`
}

type HawkesConfig struct {
	Enabled bool    `yaml:"enabled"`
	Mu      float64 `yaml:"mu"`
	Alpha   float64 `yaml:"alpha"`
	Beta    float64 `yaml:"beta"`
}

type RegimeConfig struct {
	StayCalm   float64 `yaml:"stay_calm"`
	StayStress float64 `yaml:"stay_stress"`
}

type RiskConfig struct {
	VaRLimit      float64 `yaml:"portfolio_var_limit"`
	VaRWindow     int     `yaml:"var_window"`
	HedgeOnBreach bool    `yaml:"hedge_portfolio_on_breach"`
	HedgeFraction float64 `yaml:"hedge_fraction_portfolio"`
	ESWindow      int     `yaml:"es_window"`
	ESConf        float64 `yaml:"es_conf"`
}

// AlphaConfig Events 对所有 symbol 生效，PerSymbol 按 symbol 覆盖。
type AlphaConfig struct {
	Mode      string                   `yaml:"mode"`
	Smooth    float64                  `yaml:"smooth"`
	Constant  float64                  `yaml:"constant"`
	Theta     float64                  `yaml:"theta"`
	Sigma     float64                  `yaml:"sigma"`
	Events    []alpha.Event            `yaml:"events"`
	PerSymbol map[string][]alpha.Event `yaml:"per_symbol"`
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	FeedPath    string `yaml:"feed_path"`
	FeedBuffer  int    `yaml:"feed_buffer"`
}

type AlertConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// defaultEvents 内置的新闻打分序列。
func defaultEvents() []alpha.Event {
	return []alpha.Event{
		{Step: 0, Score: 0.4},
		{Step: 50, Score: -0.04},
		{Step: 100, Score: 0.168},
		{Step: 150, Score: -0.066},
		{Step: 250, Score: 0.148},
		{Step: 300, Score: 0.118},
		{Step: 350, Score: 0.294},
		{Step: 450, Score: -0.036},
	}
}

// Default 返回默认配置：两个 symbol、三个 venue、500 步。
func Default() SimConfig {
	logCfg := logger.DefaultConfig()
	logCfg.Format = "console"
	return SimConfig{
		Symbols:        []string{"XYZ", "ABC"},
		Steps:          500,
		Seed:           42,
		StartPrice:     100,
		TickSize:       0.01,
		BookLevels:     market.DefaultLevels,
		QuoteSize:      40,
		InventoryLimit: 400,
		VolWindow:      market.DefaultVolWindow,
		RouterTopK:     2,
		Lookback:       router.DefaultLookback,
		ImpactKappa:    0.03,
		LogEvery:       50,
		Model:          asmm.DefaultParams(),
		Venues: []router.VenueConfig{
			{Name: "VENUE_A", MakerFeeBps: -0.05, TakerFeeBps: 0.20, LatencyMs: 2},
			{Name: "VENUE_B", MakerFeeBps: -0.02, TakerFeeBps: 0.25, LatencyMs: 5},
			{Name: "VENUE_C", MakerFeeBps: -0.08, TakerFeeBps: 0.18, LatencyMs: 8},
		},
		Hawkes: HawkesConfig{Enabled: true, Mu: 0.8, Alpha: 0.6, Beta: 0.3},
		Regime: RegimeConfig{StayCalm: market.DefaultStayCalm, StayStress: market.DefaultStayStress},
		Risk: RiskConfig{
			VaRLimit:      1500,
			VaRWindow:     risk.DefaultVaRWindow,
			HedgeOnBreach: true,
			HedgeFraction: 0.25,
			ESWindow:      risk.DefaultESWindow,
			ESConf:        risk.DefaultESConf,
		},
		Alpha: AlphaConfig{
			Mode:   AlphaSchedule,
			Smooth: 0.2,
			Theta:  0.05,
			Sigma:  0.05,
			Events: defaultEvents(),
		},
		Log:    logCfg,
		Server: ServerConfig{MetricsAddr: ":9108", FeedPath: "/feed"},
		Alerts: AlertConfig{Throttle: time.Minute},
	}
}

// Load 在默认值之上叠加 YAML 与环境变量；path 为空时只用默认值。
func Load(path string) (SimConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *SimConfig) error {
	if v := os.Getenv(EnvSteps); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvSteps, v, err)
		}
		cfg.Steps = n
	}
	if v := os.Getenv(EnvSeed); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvSeed, v, err)
		}
		cfg.Seed = n
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		cfg.Server.MetricsAddr = v
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func prob(v float64) bool { return v >= 0 && v <= 1 }

// Validate 校验全部字段，返回第一个错误。
func Validate(cfg SimConfig) error {
	if len(cfg.Symbols) == 0 {
		return invalid("symbols is required")
	}
	seen := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if s == "" || seen[s] {
			return invalid("symbol %q empty or duplicated", s)
		}
		seen[s] = true
	}
	if cfg.Steps <= 0 {
		return invalid("n_steps must be > 0")
	}
	if !(cfg.StartPrice > 0) || !finite(cfg.StartPrice) {
		return invalid("start_price must be > 0")
	}
	if !(cfg.TickSize >= market.MinTick) || !finite(cfg.TickSize) {
		return invalid("tick_size must be >= %v", market.MinTick)
	}
	if cfg.BookLevels < 0 || cfg.VolWindow < 0 || cfg.Lookback < 0 || cfg.LogEvery < 0 {
		return invalid("book_levels, vol_window, router_lookback and log_every must be >= 0")
	}
	if cfg.QuoteSize <= 0 {
		return invalid("quote_size must be > 0")
	}
	if cfg.InventoryLimit < 0 {
		return invalid("inventory_limit must be >= 0")
	}
	if cfg.ImpactKappa < 0 || !finite(cfg.ImpactKappa) {
		return invalid("impact_kappa must be >= 0")
	}
	if err := cfg.Model.Validate(); err != nil {
		return fmt.Errorf("%w: model: %v", ErrInvalid, err)
	}
	if err := validateVenues(cfg.Venues); err != nil {
		return err
	}
	if cfg.RouterTopK < 1 {
		return invalid("router_top_k must be >= 1")
	}
	if cfg.Hawkes.Enabled && (!(cfg.Hawkes.Mu > 0) || cfg.Hawkes.Alpha < 0 || !(cfg.Hawkes.Beta > 0)) {
		return invalid("hawkes requires mu > 0, alpha >= 0, beta > 0")
	}
	if !prob(cfg.Regime.StayCalm) || !prob(cfg.Regime.StayStress) {
		return invalid("regime stay probabilities must be within [0,1]")
	}
	if err := validateRisk(cfg.Risk); err != nil {
		return err
	}
	if err := validateAlpha(cfg.Alpha); err != nil {
		return err
	}
	if cfg.Alerts.Throttle < 0 {
		return invalid("alerts.throttle must be >= 0")
	}
	return nil
}

func validateVenues(venues []router.VenueConfig) error {
	if len(venues) == 0 {
		return invalid("at least one venue is required")
	}
	names := make(map[string]bool, len(venues))
	for _, v := range venues {
		if v.Name == "" || names[v.Name] {
			return invalid("venue %q empty or duplicated", v.Name)
		}
		names[v.Name] = true
		if !finite(v.MakerFeeBps) || !finite(v.TakerFeeBps) {
			return invalid("venue %s fees must be finite", v.Name)
		}
		if v.TakerFeeBps < 0 {
			return invalid("venue %s taker_fee_bps must be >= 0", v.Name)
		}
		if v.LatencyMs < 0 {
			return invalid("venue %s latency_ms must be >= 0", v.Name)
		}
	}
	return nil
}

func validateRisk(r RiskConfig) error {
	if r.VaRLimit < 0 || !finite(r.VaRLimit) {
		return invalid("risk.portfolio_var_limit must be >= 0")
	}
	if r.VaRWindow <= 0 || r.ESWindow <= 0 {
		return invalid("risk windows must be > 0")
	}
	if !prob(r.HedgeFraction) {
		return invalid("risk.hedge_fraction_portfolio must be within [0,1]")
	}
	if !(r.ESConf > 0 && r.ESConf < 1) {
		return invalid("risk.es_conf must be within (0,1)")
	}
	return nil
}

func validateAlpha(a AlphaConfig) error {
	switch a.Mode {
	case AlphaSchedule, AlphaNoise, AlphaConstant:
	default:
		return invalid("alpha.mode %q unknown", a.Mode)
	}
	if !(a.Smooth > 0 && a.Smooth <= 1) {
		return invalid("alpha.smooth must be within (0,1]")
	}
	if a.Mode == AlphaNoise && (!prob(a.Theta) || a.Sigma < 0) {
		return invalid("alpha noise requires theta in [0,1] and sigma >= 0")
	}
	return nil
}

// Engine 转换为引擎配置。
func (c SimConfig) Engine() sim.Config {
	return sim.Config{
		Symbols: append([]string(nil), c.Symbols...),
		Router: router.Config{
			StartPrice: c.StartPrice,
			Tick:       c.TickSize,
			Levels:     c.BookLevels,
			TopK:       c.RouterTopK,
			Lookback:   c.Lookback,
			Maker: maker.Config{
				QuoteSize:      c.QuoteSize,
				InventoryLimit: c.InventoryLimit,
				Params:         c.Model,
				VolWindow:      c.VolWindow,
				HistoryCap:     inventory.HistoryCapFor(c.VolWindow, c.Risk.VaRWindow, c.Risk.ESWindow),
			},
			Venues: append([]router.VenueConfig(nil), c.Venues...),
		},
		Hawkes: sim.HawkesConfig{
			Enabled: c.Hawkes.Enabled,
			Mu:      c.Hawkes.Mu,
			Alpha:   c.Hawkes.Alpha,
			Beta:    c.Hawkes.Beta,
		},
		Regime:      sim.RegimeConfig{StayCalm: c.Regime.StayCalm, StayStress: c.Regime.StayStress},
		ImpactKappa: c.ImpactKappa,
		Portfolio:   risk.NewPortfolioEngine(c.Risk.VaRWindow, c.Risk.VaRLimit, c.Risk.HedgeOnBreach, c.Risk.HedgeFraction),
		ESWindow:    c.Risk.ESWindow,
		ESConf:      c.Risk.ESConf,
		Seed:        c.Seed,
		Parallel:    c.Parallel,
		LogEvery:    c.LogEvery,
	}
}

// Provider 按 alpha.mode 构建信号源。
func (c SimConfig) Provider() alpha.Provider {
	switch c.Alpha.Mode {
	case AlphaConstant:
		return alpha.Constant(c.Alpha.Constant)
	case AlphaNoise:
		return alpha.NewSmoother(alpha.NewNoise(c.Alpha.Theta, c.Alpha.Sigma, c.Seed), c.Alpha.Smooth)
	}
	events := make(map[string][]alpha.Event, len(c.Symbols))
	for _, s := range c.Symbols {
		if evs, ok := c.Alpha.PerSymbol[s]; ok {
			events[s] = evs
			continue
		}
		events[s] = c.Alpha.Events
	}
	return alpha.NewSmoother(alpha.NewSchedule(events), c.Alpha.Smooth)
}
