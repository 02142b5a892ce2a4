package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/timers"
	"github.com/google/uuid"
)

// Run — дескриптор диагностического прогона.
//
// Снимки прогона выстроены в цепочку: следующий планируется только после
// завершения предыдущего, поэтому одновременно выполняется не больше одного.
// Каждый прогон пишет в собственный журнал, так что снимок, завершившийся
// после отмены, не попадает в журнал следующего прогона.
type Run struct {
	id       string
	ctx      context.Context
	sampler  *Sampler
	log      *Log
	planned  int
	interval time.Duration
	taken    atomic.Int64

	mu       sync.Mutex
	state    models.RunState
	pending  timers.Cancelable
	inFlight bool
	stopCtx  func() bool
	done     chan struct{}
	finished sync.Once
}

func newRun(ctx context.Context, s *Sampler, log *Log, planned int, interval time.Duration) *Run {
	r := &Run{
		id:       uuid.NewString(),
		ctx:      ctx,
		sampler:  s,
		log:      log,
		planned:  planned,
		interval: interval,
		state:    models.RunRunning,
		done:     make(chan struct{}),
	}
	r.stopCtx = context.AfterFunc(ctx, r.Cancel)
	return r
}

// ID возвращает идентификатор прогона.
func (r *Run) ID() string { return r.id }

// Window возвращает длительность окна прогона: sampleCount * interval.
func (r *Run) Window() time.Duration {
	return time.Duration(r.planned) * r.interval
}

// Done закрывается после завершения или отмены прогона.
func (r *Run) Done() <-chan struct{} { return r.done }

// State возвращает текущее состояние прогона.
func (r *Run) State() models.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status возвращает снимок состояния прогона.
func (r *Run) Status() models.RunStatus {
	return models.RunStatus{
		ID:           r.id,
		State:        r.State(),
		Planned:      r.planned,
		SamplesTaken: int(r.taken.Load()),
		WindowMs:     r.Window().Milliseconds(),
	}
}

// Wait ждёт окончания прогона или отмены ctx.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel отменяет оставшиеся снимки. Повторные вызовы безопасны.
//
// Если снимок уже выполняется, прогон завершается после его записи в журнал,
// поэтому Done может закрыться позже возврата из Cancel.
func (r *Run) Cancel() {
	r.mu.Lock()
	if r.state != models.RunRunning {
		r.mu.Unlock()
		return
	}
	r.state = models.RunCancelled
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	inFlight := r.inFlight
	r.mu.Unlock()

	if !inFlight {
		r.complete(models.RunCancelled)
	}
}

func (r *Run) tick() { r.step(true) }

// step снимает измерение в журнал прогона и планирует следующее.
// scheduled отличает плановые снимки от немедленного первого.
func (r *Run) step(scheduled bool) {
	r.mu.Lock()
	if r.state != models.RunRunning {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	r.sampler.measure(r.ctx, r.log)
	taken := int(r.taken.Load())
	if scheduled {
		taken = int(r.taken.Add(1))
	}

	r.mu.Lock()
	r.inFlight = false
	switch {
	case r.state != models.RunRunning:
		r.mu.Unlock()
		r.complete(models.RunCancelled)
	case taken < r.planned:
		r.pending = r.sampler.scheduler.AfterFunc(r.interval, r.tick)
		r.mu.Unlock()
	default:
		r.state = models.RunCompleted
		r.pending = nil
		r.mu.Unlock()
		r.complete(models.RunCompleted)
	}
}

func (r *Run) complete(state models.RunState) {
	r.finished.Do(func() {
		r.stopCtx()
		r.sampler.finish(r, state)
		close(r.done)
	})
}
