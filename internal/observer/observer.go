// Package observer рассылает события завершения диагностических прогонов.
package observer

import (
	"errors"
	"sync"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/report"
	"go.uber.org/zap"
)

// Manager управляет списком наблюдателей и уведомляет их о событиях.
//
// Поля:
//   - observers: список наблюдателей (RunObserver)
//   - mu: RW-мьютекс для синхронизации доступа к списку наблюдателей
//   - logger: логгер ошибок наблюдателей
type Manager struct {
	observers []models.RunObserver
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewManager создает новый экземпляр Manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		observers: make([]models.RunObserver, 0),
		logger:    logger,
	}
}

// Attach добавляет наблюдателя к списку.
func (m *Manager) Attach(observer models.RunObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// Detach удаляет наблюдателя из списка.
func (m *Manager) Detach(observer models.RunObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, obs := range m.observers {
		if obs == observer {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			break
		}
	}
}

// Notify уведомляет всех подключённых наблюдателей о событии.
// Ошибка одного наблюдателя не мешает остальным. Наблюдатель может
// отключить себя прямо из OnRunEvent.
func (m *Manager) Notify(event models.RunEvent) {
	m.mu.RLock()
	observers := append([]models.RunObserver(nil), m.observers...)
	m.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.OnRunEvent(event); err != nil {
			m.logger.Error("run observer failed", zap.String("run_id", event.RunID), zap.Error(err))
		}
	}
}

// ReportObserver анализирует журнал завершённого прогона и печатает отчёт.
type ReportObserver struct {
	Reporter   *report.Reporter
	Thresholds analyzer.Thresholds
	// ShowSamples включает вывод промежуточных измерений.
	ShowSamples bool

	mu   sync.Mutex
	last *models.Verdict
}

// OnRunEvent печатает сводку. Отменённый прогон тоже получает сводку по
// собранным измерениям.
func (o *ReportObserver) OnRunEvent(event models.RunEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if event.State == models.RunCancelled {
		o.Reporter.Cancelled(len(event.Measurements))
	}
	if o.ShowSamples {
		o.Reporter.Samples(event.Measurements)
	}

	v, err := analyzer.Analyze(event.Measurements, o.Thresholds)
	if errors.Is(err, analyzer.ErrInsufficientData) {
		o.Reporter.InsufficientData(len(event.Measurements))
		o.last = nil
		return nil
	}
	if err != nil {
		return err
	}
	o.Reporter.Verdict(v)
	o.last = &v
	return nil
}

// Last возвращает вердикт последнего проанализированного прогона.
func (o *ReportObserver) Last() (models.Verdict, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return models.Verdict{}, false
	}
	return *o.last, true
}

// LogObserver пишет итог прогона в структурированный лог.
type LogObserver struct {
	Logger     *zap.Logger
	Thresholds analyzer.Thresholds
}

func (o LogObserver) OnRunEvent(event models.RunEvent) error {
	fields := []zap.Field{
		zap.String("run_id", event.RunID),
		zap.String("state", string(event.State)),
		zap.Int("measurements", len(event.Measurements)),
	}
	v, err := analyzer.Analyze(event.Measurements, o.Thresholds)
	if err != nil {
		o.Logger.Warn("diagnostic verdict unavailable", append(fields, zap.Error(err))...)
		return nil
	}
	fields = append(fields,
		zap.Float64("elapsed_seconds", v.ElapsedSeconds),
		zap.Bool("leak_suspected", v.LeakSuspected),
		zap.Bool("timer_leak_suspected", v.TimerLeakSuspected),
	)
	if v.MemoryDeltaBytes != nil {
		fields = append(fields, zap.Int64("memory_delta_bytes", *v.MemoryDeltaBytes))
	}
	if v.TimerGrowth != nil {
		fields = append(fields, zap.Int64("timer_growth", *v.TimerGrowth))
	}
	if v.Healthy() {
		o.Logger.Info("diagnostic verdict", fields...)
	} else {
		o.Logger.Warn("diagnostic verdict", fields...)
	}
	return nil
}
