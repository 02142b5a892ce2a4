// Package probe реализует источники показаний для сэмплера: интроспекцию
// памяти и приблизительный подсчёт интерактивных элементов.
package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/debug"

	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrUnavailable означает, что источник не может предоставить данные на этой платформе.
var ErrUnavailable = errors.New("memory introspection unavailable")

// MemoryProbe — запрос интроспекции памяти.
type MemoryProbe interface {
	Read(ctx context.Context) (models.MemoryUsage, error)
}

// RuntimeProbe читает кучу Go через runtime.MemStats.
//
// Used — HeapAlloc, Total — HeapSys, Limit — мягкий лимит GOMEMLIMIT (0, если не задан).
type RuntimeProbe struct{}

func (RuntimeProbe) Read(context.Context) (models.MemoryUsage, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var limit uint64
	if l := debug.SetMemoryLimit(-1); l > 0 && l != math.MaxInt64 {
		limit = uint64(l)
	}
	return models.MemoryUsage{
		Used:  m.HeapAlloc,
		Total: m.HeapSys,
		Limit: limit,
	}, nil
}

// ProcessProbe читает резидентную память процесса через gopsutil.
//
// Used — RSS, Total — VMS, Limit — объём физической памяти системы.
type ProcessProbe struct {
	pid int32
}

// NewProcessProbe создаёт пробу для текущего процесса.
func NewProcessProbe() *ProcessProbe {
	return &ProcessProbe{pid: int32(os.Getpid())}
}

func (p *ProcessProbe) Read(ctx context.Context) (models.MemoryUsage, error) {
	proc, err := process.NewProcessWithContext(ctx, p.pid)
	if err != nil {
		return models.MemoryUsage{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return models.MemoryUsage{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	usage := models.MemoryUsage{Used: info.RSS, Total: info.VMS}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		usage.Limit = vm.Total
	}
	return usage, nil
}

// UnavailableProbe моделирует хост без интроспекции памяти.
type UnavailableProbe struct{}

func (UnavailableProbe) Read(context.Context) (models.MemoryUsage, error) {
	return models.MemoryUsage{}, ErrUnavailable
}

// NewMemoryProbe возвращает пробу по имени источника: "runtime", "process" или "none".
func NewMemoryProbe(source string) (MemoryProbe, error) {
	switch source {
	case "", "runtime":
		return RuntimeProbe{}, nil
	case "process":
		return NewProcessProbe(), nil
	case "none":
		return UnavailableProbe{}, nil
	default:
		return nil, fmt.Errorf("unknown memory source %q", source)
	}
}
