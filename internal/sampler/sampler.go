// Package sampler снимает показания ресурсов по расписанию и ведёт журнал измерений.
package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/probe"
	"github.com/RoGogDBD/leakcheck/internal/timers"
	"go.uber.org/zap"
)

var (
	ErrRunInProgress      = errors.New("diagnostic run already in progress")
	ErrInvalidSampleCount = errors.New("sample count must be at least 1")
	ErrInvalidInterval    = errors.New("sample interval must be positive")
)

// TimerCounter — источник накопленного числа регистраций таймеров.
type TimerCounter interface {
	Count() int64
}

// Sampler снимает измерения и ведёт журнал.
type Sampler struct {
	memory     probe.MemoryProbe
	elements   probe.ElementCounter
	timers     TimerCounter
	scheduler  timers.Scheduler
	now        func() time.Time
	logger     *zap.Logger
	onComplete func(models.RunEvent)

	epoch time.Time

	mu      sync.Mutex
	log     *Log
	current *Run
}

// Option настраивает Sampler.
type Option func(*Sampler)

// WithMemoryProbe задаёт источник показаний памяти.
func WithMemoryProbe(p probe.MemoryProbe) Option {
	return func(s *Sampler) { s.memory = p }
}

// WithElementCounter задаёт счётчик интерактивных элементов.
func WithElementCounter(c probe.ElementCounter) Option {
	return func(s *Sampler) { s.elements = c }
}

// WithTimerCounter подключает счётчик регистраций таймеров.
// Без него поле TimerRegistrations в измерениях остаётся пустым.
func WithTimerCounter(c TimerCounter) Option {
	return func(s *Sampler) { s.timers = c }
}

// WithScheduler задаёт примитив отложенного выполнения.
func WithScheduler(sch timers.Scheduler) Option {
	return func(s *Sampler) { s.scheduler = sch }
}

// WithClock задаёт источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// WithOnComplete задаёт обработчик завершения прогона.
// Вызывается ровно один раз на прогон, как при завершении, так и при отмене.
func WithOnComplete(fn func(models.RunEvent)) Option {
	return func(s *Sampler) { s.onComplete = fn }
}

// New создаёт сэмплер. По умолчанию память читается из runtime,
// элементы — как число горутин, планирование — через time.AfterFunc.
func New(opts ...Option) *Sampler {
	s := &Sampler{
		memory:    probe.RuntimeProbe{},
		elements:  probe.GoroutineCounter{},
		scheduler: timers.RealScheduler{},
		now:       time.Now,
		log:       NewLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.epoch = s.now()
	return s
}

// TakeMeasurement снимает показания, добавляет измерение в журнал и возвращает его.
//
// Ошибка чтения памяти не прерывает снимок: поле Memory остаётся пустым.
// Повторных попыток чтения не делается.
func (s *Sampler) TakeMeasurement(ctx context.Context) models.Measurement {
	return s.measure(ctx, s.currentLog())
}

// currentLog возвращает журнал последнего прогона или ручных измерений.
func (s *Sampler) currentLog() *Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// measure снимает показания и добавляет измерение в log.
func (s *Sampler) measure(ctx context.Context, log *Log) models.Measurement {
	var m models.Measurement

	usage, err := s.memory.Read(ctx)
	if err != nil {
		s.logger.Warn("memory introspection unavailable", zap.Error(err))
	} else {
		m.Memory = &usage
	}

	if s.timers != nil {
		count := s.timers.Count()
		m.TimerRegistrations = &count
	}

	if s.elements != nil {
		n, err := s.elements.Count(ctx)
		if err != nil {
			s.logger.Warn("failed to count interactive elements", zap.Error(err))
		} else if n > 0 {
			m.InteractiveElements = n
		}
	}

	m = log.Append(m, s.now().Sub(s.epoch))
	s.logger.Debug("measurement taken",
		zap.Float64("timestamp_ms", m.TimestampMs()),
		zap.Bool("memory_available", m.Memory != nil),
		zap.Int("interactive_elements", m.InteractiveElements),
	)
	return m
}

// Measurements возвращает копию текущего журнала.
func (s *Sampler) Measurements() []models.Measurement {
	return s.currentLog().Snapshot()
}

// Reset очищает текущий журнал. Активный прогон при этом не отменяется.
func (s *Sampler) Reset() {
	s.currentLog().Reset()
}

// Current возвращает последний запущенный прогон.
func (s *Sampler) Current() (*Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Run запускает диагностический прогон: одно немедленное измерение и
// sampleCount отложенных с шагом interval. Метод не блокируется; прогон
// начинает новый журнал, который становится текущим.
//
// Отмена ctx или вызов Run.Cancel останавливает оставшиеся снимки.
func (s *Sampler) Run(ctx context.Context, sampleCount int, interval time.Duration) (*Run, error) {
	if sampleCount < 1 {
		return nil, ErrInvalidSampleCount
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current != nil && s.current.State() == models.RunRunning {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.log = NewLog()
	run := newRun(ctx, s, s.log, sampleCount, interval)
	s.current = run
	s.mu.Unlock()

	s.logger.Info("diagnostic run started",
		zap.String("run_id", run.ID()),
		zap.Int("samples", sampleCount),
		zap.Duration("interval", interval),
		zap.Duration("window", run.Window()),
	)

	run.step(false)
	return run, nil
}

// finish рассылает событие завершения прогона.
func (s *Sampler) finish(run *Run, state models.RunState) {
	log := run.log.Snapshot()
	s.logger.Info("diagnostic run finished",
		zap.String("run_id", run.ID()),
		zap.String("state", string(state)),
		zap.Int("measurements", len(log)),
	)
	if s.onComplete != nil {
		s.onComplete(models.RunEvent{
			RunID:        run.ID(),
			State:        state,
			FinishedAt:   s.now(),
			Measurements: log,
		})
	}
}
