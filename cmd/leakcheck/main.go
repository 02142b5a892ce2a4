package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	"github.com/RoGogDBD/leakcheck/internal/client"
	"github.com/RoGogDBD/leakcheck/internal/config"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/report"
	"github.com/RoGogDBD/leakcheck/internal/version"
	"github.com/RoGogDBD/leakcheck/pkg/leakcheck"
	"go.uber.org/zap"
)

// errLeakSuspected — прогон завершился, но одна из проверок сработала.
var errLeakSuspected = errors.New("leak suspected")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errLeakSuspected):
		os.Exit(2)
	default:
		log.Fatalf("leakcheck failed: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(args, stderr)
	if err != nil {
		return err
	}
	if cfg.PrintVersion {
		version.PrintBuildInfo(stdout)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := config.Initialize(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	switch {
	case cfg.Address != "":
		return runRemote(ctx, cfg, logger, stdout)
	case cfg.Serve != "":
		return runServe(ctx, cfg, logger)
	default:
		return runLocal(ctx, cfg, logger, stdout)
	}
}

// runLocal диагностирует собственный процесс.
func runLocal(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	d, err := leakcheck.New(*cfg, logger, leakcheck.WithOutput(stdout))
	if err != nil {
		return err
	}
	defer d.Close()

	fmt.Fprintf(stdout, "Sampling %d snapshot(s) every %s\n", cfg.Samples, cfg.Interval)
	r, err := d.Run(ctx)
	if err != nil {
		return err
	}
	<-r.Done()

	if v, ok := d.LastVerdict(); ok && !v.Healthy() {
		return errLeakSuspected
	}
	return nil
}

// runRemote запускает прогон на удалённой панели и анализирует журнал локально.
func runRemote(ctx context.Context, cfg *config.Config, logger *zap.Logger, stdout io.Writer) error {
	c := client.New(cfg.Address, cfg.Key)

	started, err := c.StartRun(ctx, cfg.Samples, cfg.Interval)
	if err != nil {
		return fmt.Errorf("failed to start remote run: %w", err)
	}
	logger.Info("remote run started", zap.String("address", cfg.Address), zap.String("run_id", started.ID))

	poll := cfg.Interval / 2
	if poll < 100*time.Millisecond {
		poll = 100 * time.Millisecond
	}
	status, err := c.WaitRun(ctx, poll)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to wait for remote run: %w", err)
	}

	r := report.New(stdout, cfg.Thresholds())
	if ctx.Err() != nil {
		// Локальная отмена останавливает и удалённый прогон; сводку печатаем по собранному.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if status, err = c.CancelRun(cancelCtx); err != nil {
			return fmt.Errorf("failed to cancel remote run: %w", err)
		}
		ctx = cancelCtx
	}

	measurements, err := c.Measurements(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch measurements: %w", err)
	}
	if status.State == models.RunCancelled {
		r.Cancelled(len(measurements))
	}
	if cfg.ShowSamples {
		r.Samples(measurements)
	}

	v, err := analyzer.Analyze(measurements, cfg.Thresholds())
	if errors.Is(err, analyzer.ErrInsufficientData) {
		r.InsufficientData(len(measurements))
		return nil
	}
	if err != nil {
		return err
	}
	r.Verdict(v)
	if !v.Healthy() {
		return errLeakSuspected
	}
	return nil
}
