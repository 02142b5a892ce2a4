package models

// ThresholdMode — способ сравнения роста с порогами.
type ThresholdMode string

const (
	// ModeFixed сравнивает абсолютный рост за весь прогон (режим по умолчанию).
	ModeFixed ThresholdMode = "fixed"
	// ModeRate сравнивает рост, нормированный на длительность прогона.
	ModeRate ThresholdMode = "rate"
)

// Verdict — результат анализа журнала измерений.
//
// Поля памяти заполняются только если показания памяти есть и в первом, и
// в последнем измерении. MemoryRateBytesPerSecond остаётся nil при нулевой
// длительности прогона.
type Verdict struct {
	Samples        int           `json:"samples"`
	Mode           ThresholdMode `json:"mode"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`

	MemoryAvailable          bool     `json:"memory_available"`
	MemoryBeforeBytes        *uint64  `json:"memory_before_bytes,omitempty"`
	MemoryAfterBytes         *uint64  `json:"memory_after_bytes,omitempty"`
	MemoryDeltaBytes         *int64   `json:"memory_delta_bytes,omitempty"`
	MemoryRateBytesPerSecond *float64 `json:"memory_rate_bytes_per_second,omitempty"`
	LeakSuspected            bool     `json:"leak_suspected"`

	TimerDataAvailable bool   `json:"timer_data_available"`
	TimerGrowth        *int64 `json:"timer_growth,omitempty"`
	TimerLeakSuspected bool   `json:"timer_leak_suspected"`
}

// Healthy сообщает, что ни одна из проверок не сработала.
func (v Verdict) Healthy() bool {
	return !v.LeakSuspected && !v.TimerLeakSuspected
}
