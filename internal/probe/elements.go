package probe

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// ElementCounter оценивает число живых интерактивных элементов.
//
// Значение приблизительное: это не точный подсчёт подписчиков, а косвенный
// показатель того, что приложение держит всё больше активных объектов.
type ElementCounter interface {
	Count(ctx context.Context) (int, error)
}

// GoroutineCounter считает живые горутины.
type GoroutineCounter struct{}

func (GoroutineCounter) Count(context.Context) (int, error) {
	return runtime.NumGoroutine(), nil
}

// FDCounter считает открытые файловые дескрипторы процесса через gopsutil.
type FDCounter struct {
	pid int32
}

// NewFDCounter создаёт счётчик для текущего процесса.
func NewFDCounter() *FDCounter {
	return &FDCounter{pid: int32(os.Getpid())}
}

func (c *FDCounter) Count(ctx context.Context) (int, error) {
	proc, err := process.NewProcessWithContext(ctx, c.pid)
	if err != nil {
		return 0, err
	}
	n, err := proc.NumFDsWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// NewElementCounter возвращает счётчик по имени источника: "goroutines" или "fds".
func NewElementCounter(source string) (ElementCounter, error) {
	switch source {
	case "", "goroutines":
		return GoroutineCounter{}, nil
	case "fds":
		return NewFDCounter(), nil
	default:
		return nil, fmt.Errorf("unknown element source %q", source)
	}
}
