// Package timers содержит примитивы планирования, через которые приложение
// запускает периодическую и отложенную работу.
//
// Точка входа RegisterPeriodic глобально доступна и может быть подменена
// обёрткой (см. пакет instrument), поэтому приложение должно регистрировать
// периодические таймеры только через неё, а не через time.NewTicker напрямую.
// Соблюдение правила проверяет анализатор cmd/linter.
package timers

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidInterval возвращается при неположительном интервале.
var ErrInvalidInterval = errors.New("interval must be positive")

// RegisterFunc — сигнатура примитива регистрации периодического таймера.
type RegisterFunc func(callback func(), interval time.Duration) (*Periodic, error)

// Periodic — дескриптор зарегистрированного периодического таймера.
type Periodic struct {
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// Interval возвращает период таймера.
func (p *Periodic) Interval() time.Duration {
	return p.interval
}

// Stop останавливает таймер. Повторные вызовы безопасны.
func (p *Periodic) Stop() {
	p.once.Do(func() { close(p.done) })
}

// Slot хранит текущую реализацию примитива регистрации.
//
// Доступ к реализации синхронизирован, так что подмена во время работы
// приложения не приводит к гонке данных. Обёртки, установленные через Wrap,
// образуют стек: снять можно только верхнюю.
type Slot struct {
	mu  sync.RWMutex
	top *Layer
}

// Layer — уровень реализации в слоте. Возвращается из Wrap и служит
// ключом для Unwrap.
type Layer struct {
	fn    RegisterFunc
	below *Layer
}

// NewSlot создаёт слот с исходной реализацией fn.
func NewSlot(fn RegisterFunc) *Slot {
	return &Slot{top: &Layer{fn: fn}}
}

// Load возвращает текущую реализацию.
func (s *Slot) Load() RegisterFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.top.fn
}

// Swap устанавливает новую реализацию и возвращает предыдущую.
// Установленные ранее обёртки при этом отбрасываются.
func (s *Slot) Swap(fn RegisterFunc) RegisterFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.top.fn
	s.top = &Layer{fn: fn}
	return prev
}

// Wrap оборачивает текущую реализацию: wrap получает её и возвращает новую.
func (s *Slot) Wrap(wrap func(next RegisterFunc) RegisterFunc) *Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &Layer{fn: wrap(s.top.fn), below: s.top}
	s.top = l
	return l
}

// Unwrap снимает обёртку l, если она верхняя, и сообщает, удалось ли это.
func (s *Slot) Unwrap(l *Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil || s.top != l || l.below == nil {
		return false
	}
	s.top = l.below
	return true
}

// Register вызывает текущую реализацию.
func (s *Slot) Register(callback func(), interval time.Duration) (*Periodic, error) {
	return s.Load()(callback, interval)
}

// RegisterPeriodic — процессная точка входа регистрации периодических таймеров.
var RegisterPeriodic = NewSlot(StartPeriodic)

// Every регистрирует callback с периодом interval через RegisterPeriodic.
func Every(callback func(), interval time.Duration) (*Periodic, error) {
	return RegisterPeriodic.Register(callback, interval)
}

// StartPeriodic — исходная реализация примитива на time.Ticker.
func StartPeriodic(callback func(), interval time.Duration) (*Periodic, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	p := &Periodic{
		interval: interval,
		done:     make(chan struct{}),
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				callback()
			case <-p.done:
				return
			}
		}
	}()
	return p, nil
}
