package leakcheck

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/config"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/timers"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDiagnostic(t *testing.T, mutate func(c *Config)) (*Diagnostic, *timers.Slot, *bytes.Buffer) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	slot := timers.NewSlot(timers.StartPeriodic)
	var out bytes.Buffer
	d, err := New(cfg, zap.NewNop(), WithTimerSlot(slot), WithOutput(&out))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, d.Close()) })
	return d, slot, &out
}

func register(t *testing.T, slot *timers.Slot, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		p, err := slot.Register(func() {}, time.Hour)
		require.NoError(t, err)
		t.Cleanup(p.Stop)
	}
}

func TestDiagnostic_ManualMeasurements(t *testing.T) {
	d, slot, _ := newTestDiagnostic(t, nil)

	_, err := d.AnalyzeMeasurements()
	require.ErrorIs(t, err, ErrInsufficientData)

	first := d.TakeMeasurement(context.Background())
	register(t, slot, 2)
	second := d.TakeMeasurement(context.Background())

	require.Equal(t, int64(0), *first.TimerRegistrations)
	require.Equal(t, int64(2), *second.TimerRegistrations)
	require.Equal(t, int64(2), d.TimerRegistrations())
	require.Len(t, d.Measurements(), 2)

	v, err := d.AnalyzeMeasurements()
	require.NoError(t, err)
	require.True(t, v.TimerDataAvailable)
	require.Equal(t, int64(2), *v.TimerGrowth)
	require.False(t, v.TimerLeakSuspected)

	require.Equal(t, "1.00 MB", d.FormatBytes(1048576))
	require.Equal(t, "-1.00 MB", FormatBytes(-1048576))
}

func TestDiagnostic_RunReportsTimerLeak(t *testing.T) {
	d, slot, out := newTestDiagnostic(t, nil)

	run, err := d.RunWith(context.Background(), 2, 20*time.Millisecond)
	require.NoError(t, err)
	register(t, slot, 6)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))
	require.Equal(t, models.RunCompleted, run.State())

	require.Contains(t, out.String(), "[FAIL] timer registrations grew by 6, exceeds 5")
	v, ok := d.LastVerdict()
	require.True(t, ok)
	require.True(t, v.TimerLeakSuspected)
	require.Len(t, d.Measurements(), 3)
}

func TestDiagnostic_CancelPrintsSummary(t *testing.T) {
	d, _, out := newTestDiagnostic(t, nil)

	run, err := d.RunWith(context.Background(), 5, time.Hour)
	require.NoError(t, err)
	require.True(t, d.Cancel())
	require.False(t, d.Cancel())
	require.NoError(t, run.Wait(context.Background()))

	require.Equal(t, models.RunCancelled, run.State())
	require.Contains(t, out.String(), "run cancelled after 1 measurement(s)")
	require.Contains(t, out.String(), "insufficient data: 1 measurement(s)")
	_, ok := d.LastVerdict()
	require.False(t, ok)
}

func TestDiagnostic_RunUsesConfig(t *testing.T) {
	d, _, _ := newTestDiagnostic(t, func(c *Config) {
		c.Samples = 3
		c.Interval = time.Minute
	})

	run, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3*time.Minute, run.Window())

	_, err = d.Run(context.Background())
	require.Error(t, err)
	run.Cancel()
}

func TestDiagnostic_Report(t *testing.T) {
	d, _, _ := newTestDiagnostic(t, func(c *Config) { c.MemorySource = "none" })

	var buf bytes.Buffer
	require.NoError(t, d.Report(&buf))
	require.Contains(t, buf.String(), "insufficient data: 0 measurement(s)")

	d.TakeMeasurement(context.Background())
	d.TakeMeasurement(context.Background())
	buf.Reset()
	require.NoError(t, d.Report(&buf))
	require.Contains(t, buf.String(), "[WARN] memory introspection unavailable")
	require.Contains(t, buf.String(), "[PASS] timer registrations grew by 0")
}

func TestDiagnostic_Handler(t *testing.T) {
	d, _, _ := newTestDiagnostic(t, nil)
	srv := httptest.NewServer(d.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/measure", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, d.Measurements(), 1)
}

func TestDiagnostic_HandlerTrustedSubnet(t *testing.T) {
	d, _, _ := newTestDiagnostic(t, func(c *Config) { c.TrustedSubnet = "10.0.0.0/8" })
	h := d.Handler()

	req := httptest.NewRequest(http.MethodGet, "/measurements", nil)
	req.Header.Set("X-Real-IP", "192.168.1.10")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/measurements", nil)
	req.Header.Set("X-Real-IP", "10.1.2.3")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDiagnostic_CloseUninstalls(t *testing.T) {
	cfg := DefaultConfig()
	slot := timers.NewSlot(timers.StartPeriodic)
	d, err := New(cfg, nil, WithTimerSlot(slot), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	register(t, slot, 1)
	require.NoError(t, d.Close())
	register(t, slot, 1)
	require.Equal(t, int64(1), d.TimerRegistrations())
	require.NoError(t, d.Close())
}

func TestDiagnostic_SharedTimerCounter(t *testing.T) {
	cfg := DefaultConfig()
	slot := timers.NewSlot(timers.StartPeriodic)
	first, err := New(cfg, nil, WithTimerSlot(slot), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	second, err := New(cfg, nil, WithTimerSlot(slot), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer second.Close()

	register(t, slot, 1)
	require.Equal(t, int64(1), first.TimerRegistrations())
	require.Equal(t, int64(1), second.TimerRegistrations())

	require.NoError(t, first.Close())
	register(t, slot, 1)
	require.Equal(t, int64(2), second.TimerRegistrations(), "closing one diagnostic keeps the counter for the others")

	require.NoError(t, second.Close())
	register(t, slot, 1)
	require.Equal(t, int64(2), second.TimerRegistrations())
}

// countingObserver считает полученные события прогонов.
type countingObserver struct {
	mu     sync.Mutex
	events int
}

func (o *countingObserver) OnRunEvent(RunEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events++
	return nil
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events
}

func TestDiagnostic_AttachDetach(t *testing.T) {
	d, _, _ := newTestDiagnostic(t, nil)
	o := &countingObserver{}
	d.Attach(o)

	run, err := d.RunWith(context.Background(), 3, time.Hour)
	require.NoError(t, err)
	run.Cancel()
	require.NoError(t, run.Wait(context.Background()))
	require.Equal(t, 1, o.count())

	d.Detach(o)
	run, err = d.RunWith(context.Background(), 3, time.Hour)
	require.NoError(t, err)
	run.Cancel()
	require.NoError(t, run.Wait(context.Background()))
	require.Equal(t, 1, o.count())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Samples = 0
	_, err := New(cfg, nil, WithTimerSlot(timers.NewSlot(timers.StartPeriodic)))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestEvery_InvalidInterval(t *testing.T) {
	_, err := Every(func() {}, 0)
	require.ErrorIs(t, err, timers.ErrInvalidInterval)
}
