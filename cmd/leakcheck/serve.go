package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/config"
	"github.com/RoGogDBD/leakcheck/pkg/leakcheck"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// mountPath — префикс панели управления в демонстрационном экземпляре.
const mountPath = "/debug/leakcheck"

// runServe поднимает демонстрационный экземпляр: небольшую фоновую нагрузку
// и панель управления диагностикой под mountPath.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	d, err := leakcheck.New(*cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	w := &workload{logger: logger}
	if err := w.Start(time.Second); err != nil {
		return err
	}
	defer w.Stop()

	r := chi.NewRouter()
	r.Mount(mountPath, d.Handler())

	ln, err := net.Listen("tcp", cfg.Serve)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("control surface listening",
			zap.String("address", ln.Addr().String()),
			zap.String("path", mountPath),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down control surface")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// workload — фоновая нагрузка демонстрационного экземпляра.
// Каждый тик выделяет буфер и держит в кольце только последние ringSize буферов.
type workload struct {
	logger *zap.Logger

	mu   sync.Mutex
	ring [][]byte
	next int
	tick *leakcheck.Periodic
}

const (
	ringSize   = 16
	bufferSize = 64 << 10
)

func (w *workload) Start(interval time.Duration) error {
	w.ring = make([][]byte, ringSize)
	p, err := leakcheck.Every(w.step, interval)
	if err != nil {
		return err
	}
	w.tick = p
	return nil
}

func (w *workload) step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring[w.next] = make([]byte, bufferSize)
	w.next = (w.next + 1) % ringSize
}

func (w *workload) Stop() {
	if w.tick != nil {
		w.tick.Stop()
	}
	w.logger.Debug("demo workload stopped")
}
