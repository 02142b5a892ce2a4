// Package report выводит журнал измерений и вердикт в читаемом виде.
//
// Пакет только форматирует данные и не принимает решений: все флаги берутся
// из вердикта анализатора.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// FormatBytes переводит байты в мебибайты с двумя знаками: "1.00 MB".
func FormatBytes(bytes int64) string {
	return fmt.Sprintf("%.2f MB", float64(bytes)/1024/1024)
}

// FormatSignedBytes как FormatBytes, но с явным плюсом для роста.
func FormatSignedBytes(bytes int64) string {
	if bytes > 0 {
		return "+" + FormatBytes(bytes)
	}
	return FormatBytes(bytes)
}

// FormatRate форматирует скорость в MB/s со знаком.
func FormatRate(bytesPerSecond float64) string {
	mb := bytesPerSecond / 1024 / 1024
	if mb > 0 {
		return fmt.Sprintf("+%.2f MB/s", mb)
	}
	return fmt.Sprintf("%.2f MB/s", mb)
}

// Reporter пишет отчёт в консоль оператора.
type Reporter struct {
	w          io.Writer
	thresholds analyzer.Thresholds

	title lipgloss.Style
	pass  lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
}

// New создаёт Reporter, пишущий в w. Пороги используются только для подписей.
func New(w io.Writer, th analyzer.Thresholds) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:          w,
		thresholds: th,
		title:      r.NewStyle().Bold(true),
		pass:       r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:       r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:       r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	}
}

// Samples выводит промежуточные измерения.
func (r *Reporter) Samples(log []models.Measurement) {
	fmt.Fprintln(r.w, r.title.Render(fmt.Sprintf("Measurements (%d)", len(log))))
	for i, m := range log {
		mem := "n/a"
		if used, ok := m.MemoryUsedBytes(); ok {
			mem = FormatBytes(int64(used))
		}
		timers := "n/a"
		if n, ok := m.TimerCount(); ok {
			timers = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(r.w, "  #%-3d t=%8.3fs  memory=%-10s  timers=%-5s  elements=%d\n",
			i+1, m.TimestampMs()/1000, mem, timers, m.InteractiveElements)
	}
}

// Verdict выводит итог анализа.
func (r *Reporter) Verdict(v models.Verdict) {
	fmt.Fprintln(r.w, r.title.Render("Memory diagnostics summary"))
	fmt.Fprintf(r.w, "  Elapsed:        %.1fs (%d samples, %s thresholds)\n", v.ElapsedSeconds, v.Samples, v.Mode)

	if v.MemoryAvailable {
		fmt.Fprintf(r.w, "  Memory before:  %s\n", FormatBytes(int64(*v.MemoryBeforeBytes)))
		fmt.Fprintf(r.w, "  Memory after:   %s\n", FormatBytes(int64(*v.MemoryAfterBytes)))
		fmt.Fprintf(r.w, "  Memory delta:   %s\n", FormatSignedBytes(*v.MemoryDeltaBytes))
		if v.MemoryRateBytesPerSecond != nil {
			fmt.Fprintf(r.w, "  Memory rate:    %s\n", FormatRate(*v.MemoryRateBytesPerSecond))
		} else {
			fmt.Fprintln(r.w, "  Memory rate:    n/a (zero elapsed time)")
		}
		r.check(v.LeakSuspected,
			fmt.Sprintf("memory growth %s exceeds %s", FormatSignedBytes(*v.MemoryDeltaBytes), r.memoryLimit(v)),
			fmt.Sprintf("memory growth %s within %s", FormatSignedBytes(*v.MemoryDeltaBytes), r.memoryLimit(v)),
		)
	} else {
		fmt.Fprintf(r.w, "  %s memory introspection unavailable, memory checks skipped\n", r.warn.Render("[WARN]"))
	}

	if v.TimerDataAvailable {
		r.check(v.TimerLeakSuspected,
			fmt.Sprintf("timer registrations grew by %d, exceeds %s", *v.TimerGrowth, r.timerLimit(v)),
			fmt.Sprintf("timer registrations grew by %d, within %s", *v.TimerGrowth, r.timerLimit(v)),
		)
	} else {
		fmt.Fprintf(r.w, "  %s timer instrumentation not installed, timer checks skipped\n", r.warn.Render("[WARN]"))
	}
}

// InsufficientData сообщает, что анализ невозможен.
func (r *Reporter) InsufficientData(samples int) {
	fmt.Fprintf(r.w, "%s insufficient data: %d measurement(s), at least 2 required\n", r.warn.Render("[WARN]"), samples)
}

// Cancelled сообщает об отменённом прогоне.
func (r *Reporter) Cancelled(samples int) {
	fmt.Fprintf(r.w, "%s run cancelled after %d measurement(s)\n", r.warn.Render("[WARN]"), samples)
}

func (r *Reporter) check(failed bool, failMsg, passMsg string) {
	if failed {
		fmt.Fprintf(r.w, "  %s %s\n", r.fail.Render("[FAIL]"), failMsg)
		return
	}
	fmt.Fprintf(r.w, "  %s %s\n", r.pass.Render("[PASS]"), passMsg)
}

// memoryLimit называет порог, с которым сравнивался рост: при нулевом
// времени прогона режим rate сравнивает абсолютный рост.
func (r *Reporter) memoryLimit(v models.Verdict) string {
	if r.thresholds.Mode == models.ModeRate && v.MemoryRateBytesPerSecond != nil {
		return strings.TrimPrefix(FormatRate(r.thresholds.LeakBytesPerSecond), "+")
	}
	return FormatBytes(r.thresholds.LeakBytes)
}

func (r *Reporter) timerLimit(v models.Verdict) string {
	if r.thresholds.Mode == models.ModeRate && v.ElapsedSeconds > 0 {
		return fmt.Sprintf("%.1f/min", r.thresholds.TimerGrowthPerMinute)
	}
	return fmt.Sprintf("%d", r.thresholds.TimerGrowth)
}
