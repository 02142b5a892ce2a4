package timers

import "time"

// Cancelable — отменяемое отложенное выполнение.
type Cancelable interface {
	// Stop отменяет выполнение и сообщает, было ли оно ещё в ожидании.
	Stop() bool
}

// Scheduler — примитив однократного отложенного выполнения.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Cancelable
}

// RealScheduler планирует выполнение через time.AfterFunc.
type RealScheduler struct{}

// AfterFunc вызывает fn в отдельной горутине по истечении d.
func (RealScheduler) AfterFunc(d time.Duration, fn func()) Cancelable {
	return time.AfterFunc(d, fn)
}
