// Package leakcheck — диагностика утечек памяти и таймеров работающего приложения.
//
// Diagnostic устанавливает счётчик регистраций периодических таймеров,
// снимает серию измерений и печатает вердикт. Приложение регистрирует
// периодическую работу через Every, чтобы регистрации попадали в счётчик.
package leakcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	"github.com/RoGogDBD/leakcheck/internal/config"
	"github.com/RoGogDBD/leakcheck/internal/handler"
	"github.com/RoGogDBD/leakcheck/internal/instrument"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/observer"
	"github.com/RoGogDBD/leakcheck/internal/probe"
	"github.com/RoGogDBD/leakcheck/internal/report"
	"github.com/RoGogDBD/leakcheck/internal/sampler"
	"github.com/RoGogDBD/leakcheck/internal/service"
	"github.com/RoGogDBD/leakcheck/internal/timers"
	"go.uber.org/zap"
)

type (
	Config      = config.Config
	Measurement = models.Measurement
	Verdict     = models.Verdict
	RunEvent    = models.RunEvent
	RunObserver = models.RunObserver
	Run         = sampler.Run
	Periodic    = timers.Periodic
)

// ErrInsufficientData возвращается анализом журнала короче двух измерений.
var ErrInsufficientData = analyzer.ErrInsufficientData

// DefaultConfig возвращает конфигурацию по умолчанию: 6 снимков каждые 5 секунд, пороги 10 MiB и 5.
func DefaultConfig() Config {
	return config.Default()
}

// Every регистрирует периодический callback через общую точку входа.
// Такие регистрации учитываются диагностикой.
func Every(callback func(), interval time.Duration) (*Periodic, error) {
	return timers.Every(callback, interval)
}

// FormatBytes переводит байты в мебибайты: "1.00 MB".
func FormatBytes(bytes int64) string {
	return report.FormatBytes(bytes)
}

// Diagnostic — управляющий объект диагностики.
type Diagnostic struct {
	cfg       Config
	logger    *zap.Logger
	shim      *instrument.TimerShim
	sampler   *sampler.Sampler
	observers *observer.Manager
	reports   *observer.ReportObserver
	handler   *handler.Handler
	trusted   *net.IPNet

	closeOnce sync.Once
	closeErr  error
}

type options struct {
	output  io.Writer
	slot    *timers.Slot
	sampler []sampler.Option
}

// Option настраивает Diagnostic.
type Option func(*options)

// WithOutput задаёт поток для отчётов о прогонах (по умолчанию stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithTimerSlot задаёт точку входа регистрации таймеров вместо процессной.
func WithTimerSlot(slot *timers.Slot) Option {
	return func(o *options) { o.slot = slot }
}

// WithSamplerOptions передаёт дополнительные настройки сэмплеру.
func WithSamplerOptions(opts ...sampler.Option) Option {
	return func(o *options) { o.sampler = append(o.sampler, opts...) }
}

// New проверяет конфигурацию, устанавливает счётчик таймеров и создаёт Diagnostic.
// Счётчик действует до вызова Close.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Diagnostic, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{output: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	memory, err := probe.NewMemoryProbe(cfg.MemorySource)
	if err != nil {
		return nil, err
	}
	elements, err := probe.NewElementCounter(cfg.ElementSource)
	if err != nil {
		return nil, err
	}

	trusted, err := cfg.Subnet()
	if err != nil {
		return nil, err
	}

	shim, err := instrument.Acquire(o.slot)
	if err != nil {
		return nil, fmt.Errorf("failed to install timer shim: %w", err)
	}

	d := &Diagnostic{
		cfg:       cfg,
		logger:    logger,
		shim:      shim,
		observers: observer.NewManager(logger),
		trusted:   trusted,
	}
	d.reports = &observer.ReportObserver{
		Reporter:    report.New(o.output, cfg.Thresholds()),
		Thresholds:  cfg.Thresholds(),
		ShowSamples: cfg.ShowSamples,
	}
	d.observers.Attach(d.reports)
	d.observers.Attach(observer.LogObserver{Logger: logger, Thresholds: cfg.Thresholds()})

	samplerOpts := append([]sampler.Option{
		sampler.WithMemoryProbe(memory),
		sampler.WithElementCounter(elements),
		sampler.WithTimerCounter(shim),
		sampler.WithLogger(logger),
		sampler.WithOnComplete(d.observers.Notify),
	}, o.sampler...)
	d.sampler = sampler.New(samplerOpts...)

	d.handler = handler.NewHandler(d.sampler, cfg.Thresholds(), logger)
	d.handler.SetKey(cfg.Key)
	d.handler.SetRunDefaults(cfg.Samples, cfg.Interval)

	logger.Info("leak diagnostics installed",
		zap.String("memory_source", cfg.MemorySource),
		zap.String("element_source", cfg.ElementSource),
		zap.String("mode", cfg.Mode),
	)
	return d, nil
}

// TakeMeasurement снимает одно измерение и добавляет его в журнал.
func (d *Diagnostic) TakeMeasurement(ctx context.Context) Measurement {
	return d.sampler.TakeMeasurement(ctx)
}

// Measurements возвращает копию журнала.
func (d *Diagnostic) Measurements() []Measurement {
	return d.sampler.Measurements()
}

// AnalyzeMeasurements анализирует текущий журнал.
func (d *Diagnostic) AnalyzeMeasurements() (Verdict, error) {
	return analyzer.Analyze(d.sampler.Measurements(), d.cfg.Thresholds())
}

// FormatBytes переводит байты в мебибайты.
func (d *Diagnostic) FormatBytes(bytes int64) string {
	return report.FormatBytes(bytes)
}

// TimerRegistrations возвращает число регистраций таймеров с момента установки.
func (d *Diagnostic) TimerRegistrations() int64 {
	return d.shim.Count()
}

// Run запускает прогон с параметрами из конфигурации.
func (d *Diagnostic) Run(ctx context.Context) (*Run, error) {
	return d.sampler.Run(ctx, d.cfg.Samples, d.cfg.Interval)
}

// RunWith запускает прогон из samples снимков с шагом interval.
// По завершении или отмене отчёт печатается подключёнными наблюдателями.
func (d *Diagnostic) RunWith(ctx context.Context, samples int, interval time.Duration) (*Run, error) {
	return d.sampler.Run(ctx, samples, interval)
}

// Cancel отменяет текущий прогон. Возвращает false, если активного прогона нет.
func (d *Diagnostic) Cancel() bool {
	run, ok := d.sampler.Current()
	if !ok || run.State() != models.RunRunning {
		return false
	}
	run.Cancel()
	return true
}

// LastVerdict возвращает вердикт последнего завершённого прогона.
func (d *Diagnostic) LastVerdict() (Verdict, bool) {
	return d.reports.Last()
}

// Attach подключает наблюдателя за завершением прогонов.
func (d *Diagnostic) Attach(o RunObserver) {
	d.observers.Attach(o)
}

// Detach отключает наблюдателя, подключённого через Attach.
func (d *Diagnostic) Detach(o RunObserver) {
	d.observers.Detach(o)
}

// Report печатает в w вердикт по текущему журналу.
func (d *Diagnostic) Report(w io.Writer) error {
	r := report.New(w, d.cfg.Thresholds())
	log := d.sampler.Measurements()
	if d.cfg.ShowSamples {
		r.Samples(log)
	}
	v, err := analyzer.Analyze(log, d.cfg.Thresholds())
	if errors.Is(err, analyzer.ErrInsufficientData) {
		r.InsufficientData(len(log))
		return nil
	}
	if err != nil {
		return err
	}
	r.Verdict(v)
	return nil
}

// Handler возвращает HTTP-панель управления диагностикой.
func (d *Diagnostic) Handler() http.Handler {
	return service.NewRouter(d.handler, d.logger, d.trusted)
}

// Close отменяет активный прогон и освобождает счётчик таймеров.
// Счётчик снимается, когда закрыта последняя диагностика на этом слоте.
// Повторные вызовы безопасны.
func (d *Diagnostic) Close() error {
	d.closeOnce.Do(func() {
		d.Cancel()
		d.closeErr = d.shim.Release()
	})
	return d.closeErr
}
