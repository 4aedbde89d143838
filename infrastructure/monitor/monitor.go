package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"market-maker-sim/sim"
)

// Monitor Prometheus监控指标收集器，订阅仿真步结果。
type Monitor struct {
	registry *prometheus.Registry

	// 仿真进度
	steps prometheus.Counter

	// 分 symbol 状态
	mid       *prometheus.GaugeVec
	inventory *prometheus.GaugeVec
	pnl       *prometheus.GaugeVec
	es        *prometheus.GaugeVec
	alpha     *prometheus.GaugeVec
	regime    *prometheus.GaugeVec

	// 成交
	fills      *prometheus.CounterVec
	fillVolume *prometheus.CounterVec
	fees       *prometheus.CounterVec

	// 组合风控
	portfolioVaR prometheus.Gauge
	breaches     prometheus.Counter
	hedges       prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "mm",
		Subsystem: "sim",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Monitor{
		registry: reg,
		steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "steps_total",
			Help:      "已完成的仿真步数",
		}),
		mid:       gauge("mid_price", "参考 venue 中间价", "symbol"),
		inventory: gauge("inventory", "参考 venue 净库存", "symbol"),
		pnl:       gauge("pnl", "全部 venue 盯市盈亏", "symbol"),
		es:        gauge("expected_shortfall", "滚动 ES", "symbol"),
		alpha:     gauge("alpha", "当前 alpha 信号", "symbol"),
		regime:    gauge("regime", "外部流状态(0=CALM,1=STRESS)", "symbol"),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "做市商成交笔数",
		}, []string{"symbol", "venue", "role"}),
		fillVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fill_volume_total",
			Help:      "做市商累计成交量",
		}, []string{"symbol", "venue", "role"}),
		fees: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fees_paid_total",
			Help:      "累计支付的手续费（不含返佣）",
		}, []string{"venue"}),
		portfolioVaR: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "portfolio_var",
			Help:      "组合 VaR",
		}),
		breaches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "var_breaches_total",
			Help:      "VaR 超限次数",
		}),
		hedges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "hedges_total",
			Help:      "组合对冲次数",
		}),
	}
}

// OnStep 实现 sim.Sink。
func (m *Monitor) OnStep(res sim.StepResult) {
	m.steps.Inc()
	m.portfolioVaR.Set(res.VaR)
	if res.Breach {
		m.breaches.Inc()
	}
	if res.Hedged {
		m.hedges.Inc()
	}
	for _, r := range res.Records {
		m.mid.WithLabelValues(r.Symbol).Set(r.Mid)
		m.inventory.WithLabelValues(r.Symbol).Set(float64(r.Inventory))
		m.pnl.WithLabelValues(r.Symbol).Set(r.PnL)
		m.es.WithLabelValues(r.Symbol).Set(r.ExpectedShortfall)
		m.alpha.WithLabelValues(r.Symbol).Set(r.Alpha)
		m.regime.WithLabelValues(r.Symbol).Set(float64(r.Regime))
	}
	for _, e := range res.Executions {
		role := string(e.Role)
		m.fills.WithLabelValues(e.Symbol, e.Venue, role).Inc()
		m.fillVolume.WithLabelValues(e.Symbol, e.Venue, role).Add(float64(e.Qty))
		if e.Fee < 0 {
			m.fees.WithLabelValues(e.Venue).Add(-e.Fee)
		}
	}
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
