package main

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pyrite-lang/pyrite/pkg/config"
)

func runWatch(ctx context.Context, dir string, flags *cliFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := initTracing(ctx, flags.TraceEndpoint)
	if err != nil {
		return err
	}
	defer shutdown()

	cfg, err := config.Find(dir)
	if err != nil {
		return err
	}
	store, err := openStore(cfg, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	if flags.MetricsAddr != "" {
		go serveMetrics(flags.MetricsAddr)
	}

	runs := make(chan struct{}, 1)
	runs <- struct{}{} // initial full check

	w, err := newDebouncedWatcher(cfg, func() {
		select {
		case runs <- struct{}{}:
		default: // a run is already queued
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	slog.Info("watching for changes", "dir", cfg.Dir, "debounce", cfg.Watch.Debounce.Duration)
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case <-runs:
			res, err := runBuild(ctx, cfg, store)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("build failed", "error", err)
				continue
			}
			printDiagnostics(res, cfg)
			slog.Info("build finished",
				"checked", len(res.Checked),
				"cached", len(res.Cached),
				"errors", res.HasErrors())
		}
	}
}

// debouncedWatcher batches filesystem events: rapid saves collapse into
// one rebuild after the configured quiet period.
type debouncedWatcher struct {
	fsw      *fsnotify.Watcher
	cfg      *config.Config
	debounce time.Duration
	onChange func()

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncedWatcher(cfg *config.Config, onChange func()) (*debouncedWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &debouncedWatcher{
		fsw:      fsw,
		cfg:      cfg,
		debounce: cfg.Watch.Debounce.Duration,
		onChange: onChange,
	}

	for _, root := range cfg.Paths {
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.Dir, root)
		}
		if err := w.watchRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	go w.run()
	return w, nil
}

func (w *debouncedWatcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == ".pyrite" {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *debouncedWatcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchRecursive(event.Name); err != nil {
						slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("change detected", "path", event.Name, "op", event.Op.String())
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *debouncedWatcher) relevant(path string) bool {
	if !strings.HasSuffix(path, moduleSuffix) {
		return false
	}
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		rel = path
	}
	return !w.cfg.Excluded(rel)
}

func (w *debouncedWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func (w *debouncedWatcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server failed", "error", err)
	}
}
