// Package container 组装仿真进程：日志、指标、告警、推送与引擎。
package container

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"market-maker-sim/config"
	"market-maker-sim/infrastructure/alert"
	"market-maker-sim/infrastructure/feed"
	"market-maker-sim/infrastructure/logger"
	"market-maker-sim/infrastructure/monitor"
	"market-maker-sim/posttrade"
	"market-maker-sim/sim"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	cfg config.SimConfig

	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager
	feed    *feed.Hub
	report  *posttrade.Report
	engine  *sim.Engine

	http      *httpServerComponent
	lifecycle *LifecycleManager
	ownLogger bool
}

// Option 容器可选项。
type Option func(*Container)

// WithLogger 复用调用方的日志器；Stop 不会关闭它。
func WithLogger(l *logger.Logger) Option {
	return func(c *Container) { c.logger = l }
}

// New 配置需已通过校验（config.Load）。
func New(cfg config.SimConfig, opts ...Option) *Container {
	c := &Container{cfg: cfg, lifecycle: NewLifecycleManager()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build 构建所有组件
func (c *Container) Build() error {
	var err error
	if c.logger == nil {
		c.logger, err = logger.New(c.cfg.Log)
		if err != nil {
			return fmt.Errorf("create logger failed: %w", err)
		}
		c.ownLogger = true
	}
	zl := c.logger.Zap()

	c.monitor = monitor.New(monitor.DefaultConfig())
	c.alerts = alert.NewManager([]alert.Channel{alert.NewLogChannel("log", zl)}, c.cfg.Alerts.Throttle)
	c.feed = feed.NewHub(c.cfg.Server.FeedBuffer, zl)
	c.report = posttrade.NewReport()

	c.engine, err = sim.New(c.cfg.Engine(), c.cfg.Provider(),
		sim.WithLogger(zl),
		sim.WithAlerter(c.alerts),
		sim.WithSinks(c.monitor, c.feed, c.report),
	)
	if err != nil {
		return fmt.Errorf("build engine failed: %w", err)
	}

	if c.cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", c.monitor.Handler())
		mux.Handle(c.cfg.Server.FeedPath, c.feed)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			if err := c.lifecycle.CheckHealth(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		c.http = &httpServerComponent{name: "http_server", addr: c.cfg.Server.MetricsAddr, handler: mux, logger: zl}
		c.lifecycle.Register(c.http)
	}

	c.logger.Info("container built", zap.String("run_id", c.engine.RunID()))
	return nil
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}
	return nil
}

// Run 执行配置的步数，结束后输出成交归因与逆向选择统计。
func (c *Container) Run(ctx context.Context) (sim.Summary, error) {
	sum, err := c.engine.Run(ctx, c.cfg.Steps)
	for _, row := range c.report.Attribution.Rows() {
		c.logger.LogTrade("attribution", map[string]interface{}{
			"symbol":         row.Symbol,
			"venue":          row.Venue,
			"maker_rebate":   row.MakerRebate.StringFixed(6),
			"taker_fees":     row.TakerFees.StringFixed(6),
			"spread_capture": row.SpreadCapture.StringFixed(6),
			"qty":            row.Qty,
			"net_exec_pnl":   row.Net.StringFixed(6),
		})
	}
	st := c.report.Markouts.Stats()
	c.logger.Info("markout summary",
		zap.Int("fills", st.TotalFills),
		zap.Int("analyzed", st.AnalyzedFills),
		zap.Float64("adverse_rate", st.AdverseSelectionRate),
		zap.Float64("markout_1", st.AvgMarkout1),
		zap.Float64("markout_5", st.AvgMarkout5),
	)
	return sum, err
}

// Stop 断开推送客户端并停止 HTTP 服务
func (c *Container) Stop() error {
	if c.feed != nil {
		c.feed.Close()
	}
	err := c.lifecycle.StopAll()
	if err != nil && c.logger != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	if c.logger != nil && c.ownLogger {
		_ = c.logger.Close()
	}
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Addr HTTP 实际监听地址；未配置时为空。
func (c *Container) Addr() string {
	if c.http == nil {
		return ""
	}
	return c.http.Addr()
}

func (c *Container) Report() *posttrade.Report { return c.report }

func (c *Container) Monitor() *monitor.Monitor { return c.monitor }
