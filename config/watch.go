package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultCooldown 两次重载的最小间隔，合并编辑器的连续写入。
const DefaultCooldown = 2 * time.Second

// Watcher 监听配置文件变更，校验通过后回调新配置。
// 监听所在目录而不是文件本身，兼容“写临时文件再 rename”的保存方式。
type Watcher struct {
	Path     string
	Cooldown time.Duration
	Logger   *zap.Logger

	now func() time.Time
}

// Start 阻塞直到 ctx 取消；无效配置只记录日志，不触发回调。
func (w *Watcher) Start(ctx context.Context, onUpdate func(SimConfig)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = DefaultCooldown
	}
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	if w.now == nil {
		w.now = time.Now
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", target, err)
	}

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			now := w.now()
			if !last.IsZero() && now.Sub(last) < w.Cooldown {
				continue
			}
			cfg, err := Load(target)
			if err != nil {
				w.Logger.Warn("config reload rejected", zap.String("path", target), zap.Error(err))
				continue
			}
			last = now
			w.Logger.Info("config reloaded", zap.String("path", target))
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
