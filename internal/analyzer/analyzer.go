// Package analyzer превращает журнал измерений в вердикт об утечке.
package analyzer

import (
	"errors"
	"fmt"
	"time"

	models "github.com/RoGogDBD/leakcheck/internal/model"
)

// MiB — мебибайт в байтах.
const MiB = 1024 * 1024

const (
	// DefaultLeakBytes — рост памяти за прогон, выше которого подозревается утечка.
	DefaultLeakBytes = 10 * MiB
	// DefaultTimerGrowth — рост числа регистраций таймеров, выше которого подозревается утечка.
	DefaultTimerGrowth = 5
	// DefaultLeakBytesPerSecond соответствует 10 MiB за 30-секундное окно.
	DefaultLeakBytesPerSecond = float64(DefaultLeakBytes) / 30
	// DefaultTimerGrowthPerMinute соответствует 5 регистрациям за 30-секундное окно.
	DefaultTimerGrowthPerMinute = 10.0
)

var (
	// ErrInsufficientData возвращается, если в журнале меньше двух измерений.
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidMode      = errors.New("invalid threshold mode")
)

// Thresholds задаёт пороги срабатывания.
//
// В режиме ModeFixed сравнивается абсолютный рост за прогон, в режиме
// ModeRate — рост, делённый на длительность прогона.
type Thresholds struct {
	Mode                 models.ThresholdMode
	LeakBytes            int64
	TimerGrowth          int64
	LeakBytesPerSecond   float64
	TimerGrowthPerMinute float64
}

// DefaultThresholds возвращает пороги по умолчанию: 10 MiB и 5 регистраций, режим fixed.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Mode:                 models.ModeFixed,
		LeakBytes:            DefaultLeakBytes,
		TimerGrowth:          DefaultTimerGrowth,
		LeakBytesPerSecond:   DefaultLeakBytesPerSecond,
		TimerGrowthPerMinute: DefaultTimerGrowthPerMinute,
	}
}

// Validate проверяет корректность порогов.
func (t Thresholds) Validate() error {
	switch t.Mode {
	case models.ModeFixed, models.ModeRate:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, t.Mode)
	}
	if t.LeakBytes < 0 || t.TimerGrowth < 0 {
		return errors.New("thresholds must not be negative")
	}
	if t.LeakBytesPerSecond < 0 || t.TimerGrowthPerMinute < 0 {
		return errors.New("rate thresholds must not be negative")
	}
	return nil
}

// Analyze вычисляет вердикт по первому и последнему измерению журнала.
//
// При менее чем двух измерениях возвращает ErrInsufficientData и пустой вердикт.
// Недоступность памяти или счётчика таймеров не является ошибкой: соответствующие
// поля вердикта остаются пустыми.
func Analyze(log []models.Measurement, th Thresholds) (models.Verdict, error) {
	if len(log) < 2 {
		return models.Verdict{}, ErrInsufficientData
	}
	if th.Mode == "" {
		th.Mode = models.ModeFixed
	}

	first, last := log[0], log[len(log)-1]
	elapsed := last.Timestamp - first.Timestamp
	if elapsed < 0 {
		elapsed = 0
	}

	v := models.Verdict{
		Samples:        len(log),
		Mode:           th.Mode,
		ElapsedSeconds: elapsed.Seconds(),
	}

	before, okBefore := first.MemoryUsedBytes()
	after, okAfter := last.MemoryUsedBytes()
	if okBefore && okAfter {
		delta := int64(after) - int64(before)
		v.MemoryAvailable = true
		v.MemoryBeforeBytes = &before
		v.MemoryAfterBytes = &after
		v.MemoryDeltaBytes = &delta
		if elapsed > 0 {
			rate := float64(delta) / v.ElapsedSeconds
			v.MemoryRateBytesPerSecond = &rate
		}
		v.LeakSuspected = memoryLeak(th, delta, v.MemoryRateBytesPerSecond)
	}

	timersBefore, okBefore := first.TimerCount()
	timersAfter, okAfter := last.TimerCount()
	if okBefore && okAfter {
		growth := timersAfter - timersBefore
		v.TimerDataAvailable = true
		v.TimerGrowth = &growth
		v.TimerLeakSuspected = timerLeak(th, growth, elapsed)
	}

	return v, nil
}

func memoryLeak(th Thresholds, delta int64, rate *float64) bool {
	if th.Mode == models.ModeRate && rate != nil {
		return *rate > th.LeakBytesPerSecond
	}
	return delta > th.LeakBytes
}

func timerLeak(th Thresholds, growth int64, elapsed time.Duration) bool {
	if th.Mode == models.ModeRate && elapsed > 0 {
		return float64(growth)/elapsed.Minutes() > th.TimerGrowthPerMinute
	}
	return growth > th.TimerGrowth
}
