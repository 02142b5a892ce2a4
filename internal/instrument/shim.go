// Package instrument подсчитывает регистрации периодических таймеров.
//
// TimerShim оборачивает реализацию в timers.Slot: обёртка увеличивает
// счётчик и передаёт вызов исходной реализации без изменений. Подмена
// глобальна для процесса и действует до явного снятия. Acquire выдаёт
// один общий шим на слот, поэтому несколько диагностик в процессе
// не оборачивают примитив повторно.
package instrument

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/timers"
)

var (
	ErrAlreadyInstalled = errors.New("timer shim already installed")
	ErrNotInstalled     = errors.New("timer shim not installed")
	// ErrShadowed возвращается из Uninstall, если поверх шима установлена другая обёртка.
	ErrShadowed = errors.New("timer shim is wrapped by another implementation")
)

// TimerShim считает вызовы примитива регистрации периодических таймеров.
type TimerShim struct {
	target *timers.Slot
	mu     sync.Mutex
	layer  *timers.Layer
	count  atomic.Int64

	refs int // под sharedMu
}

// NewTimerShim создаёт шим для слота target.
// Если target равен nil, используется timers.RegisterPeriodic.
func NewTimerShim(target *timers.Slot) *TimerShim {
	if target == nil {
		target = timers.RegisterPeriodic
	}
	return &TimerShim{target: target}
}

// Install оборачивает текущую реализацию слота.
//
// Повторная установка не оборачивает примитив ещё раз и возвращает ErrAlreadyInstalled.
func (s *TimerShim) Install() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layer != nil {
		return ErrAlreadyInstalled
	}
	s.layer = s.target.Wrap(func(next timers.RegisterFunc) timers.RegisterFunc {
		return func(callback func(), interval time.Duration) (*timers.Periodic, error) {
			s.count.Add(1)
			return next(callback, interval)
		}
	})
	return nil
}

// Uninstall снимает обёртку. Счётчик сохраняется.
//
// Если поверх шима установлена другая обёртка, слот не меняется,
// шим продолжает считать и возвращается ErrShadowed.
func (s *TimerShim) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.layer == nil {
		return ErrNotInstalled
	}
	if !s.target.Unwrap(s.layer) {
		return ErrShadowed
	}
	s.layer = nil
	return nil
}

// Installed сообщает, установлен ли шим.
func (s *TimerShim) Installed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layer != nil
}

// Count возвращает число регистраций с момента первой установки.
func (s *TimerShim) Count() int64 {
	return s.count.Load()
}

// Reset обнуляет счётчик.
func (s *TimerShim) Reset() {
	s.count.Store(0)
}

var (
	sharedMu sync.Mutex
	shared   = map[*timers.Slot]*TimerShim{}
)

// Acquire возвращает общий шим слота target, устанавливая его при первом
// обращении. Каждому Acquire соответствует один Release: шим снимается
// после последнего. Если target равен nil, используется timers.RegisterPeriodic.
func Acquire(target *timers.Slot) (*TimerShim, error) {
	if target == nil {
		target = timers.RegisterPeriodic
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if s, ok := shared[target]; ok {
		s.refs++
		return s, nil
	}
	s := NewTimerShim(target)
	if err := s.Install(); err != nil {
		return nil, err
	}
	s.refs = 1
	shared[target] = s
	return s, nil
}

// Release освобождает шим, полученный через Acquire.
func (s *TimerShim) Release() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared[s.target] != s {
		return ErrNotInstalled
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	delete(shared, s.target)
	return s.Uninstall()
}
