package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 基于 fsnotify 监听配置文件，变更时重新加载并通知回调。
// 带冷却时间，避免编辑器多次写入触发频繁 reload。
type Watcher struct {
	Path     string
	Cooldown time.Duration
	OnUpdate func(AppConfig)
	OnError  func(error)

	watcher    *fsnotify.Watcher
	stopChan   chan struct{}
	doneChan   chan struct{}
	mu         sync.Mutex
	lastReload time.Time
}

// NewWatcher 创建配置监听器。
func NewWatcher(path string, onUpdate func(AppConfig)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		Path:     path,
		Cooldown: 2 * time.Second,
		OnUpdate: onUpdate,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 开始监听；ctx 取消或 Stop 后退出。
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.loop(ctx)
	return nil
}

// Stop 停止监听并等待循环退出。
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}
	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
	}
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(w.lastReload) < w.Cooldown {
		return
	}

	cfg, err := LoadWithEnvOverrides(w.Path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
	w.lastReload = time.Now()
}
