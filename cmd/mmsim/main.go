package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"market-maker-sim/config"
	"market-maker-sim/infrastructure/logger"
	"market-maker-sim/internal/container"
)

func main() {
	cfgPath := flag.String("config", "", "YAML 配置文件路径，留空使用默认配置")
	steps := flag.Int64("steps", 0, "覆盖配置中的步数（>0 生效）")
	seed := flag.Int64("seed", 0, "覆盖配置中的随机种子")
	serve := flag.Bool("serve", false, "运行结束后保持 metrics/feed 服务，并通知 systemd")
	watch := flag.Bool("watch", false, "监听配置文件，变更后重新运行")
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load()

	seedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})
	override := func(cfg config.SimConfig) (config.SimConfig, error) {
		if *steps > 0 {
			cfg.Steps = *steps
		}
		if seedSet {
			cfg.Seed = *seed
		}
		return cfg, config.Validate(cfg)
	}

	cfg, err := config.Load(*cfgPath)
	if err == nil {
		cfg, err = override(cfg)
	}
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 进程级日志器按启动时的 log 配置创建一次，热更新不重建
	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("创建日志器失败: %v", err)
	}
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*watch || *cfgPath == "" {
		if err := execute(ctx, cfg, lg, *serve); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("仿真失败", zap.Error(err))
			_ = lg.Close()
			os.Exit(1)
		}
		return
	}

	updates := make(chan config.SimConfig, 1)
	w := &config.Watcher{Path: *cfgPath, Logger: lg.Zap()}
	go func() {
		err := w.Start(ctx, func(next config.SimConfig) {
			next, err := override(next)
			if err != nil {
				lg.Warn("忽略无效配置", zap.String("path", *cfgPath), zap.Error(err))
				return
			}
			// 只保留最新一份
			select {
			case <-updates:
			default:
			}
			updates <- next
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("配置监听退出", zap.Error(err))
		}
	}()

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(c config.SimConfig) { done <- execute(runCtx, c, lg, true) }(cfg)

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case cfg = <-updates:
			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("上一轮仿真失败", zap.Error(err))
			}
			lg.Info("配置已更新，重新运行", zap.Int64("steps", cfg.Steps), zap.Int64("seed", cfg.Seed))
		}
	}
}

// execute 完成一次完整运行；hold 为 true 时跑完后保持服务直到 ctx 取消。
func execute(ctx context.Context, cfg config.SimConfig, lg *logger.Logger, hold bool) error {
	c := container.New(cfg, container.WithLogger(lg))
	if err := c.Build(); err != nil {
		return err
	}
	defer c.Stop()
	if err := c.Start(ctx); err != nil {
		return err
	}
	if hold {
		if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			lg.Warn("systemd notify failed", zap.Error(err))
		}
	}

	sum, err := c.Run(ctx)
	fmt.Printf("run %s: %d steps, %d hedges, last VaR %.2f, %s\n",
		sum.RunID, sum.Steps, sum.Hedges, sum.LastVaR, sum.Duration)
	for _, r := range sum.Final {
		fmt.Printf("  %-6s mid=%.4f inv=%d pnl=%.2f es=%.6f regime=%s\n",
			r.Symbol, r.Mid, r.Inventory, r.PnL, r.ExpectedShortfall, r.Regime)
	}
	if addr := c.Addr(); addr != "" && hold {
		fmt.Printf("serving metrics and feed on %s\n", addr)
	}
	if err != nil {
		return err
	}
	if hold {
		<-ctx.Done()
	}
	return nil
}
