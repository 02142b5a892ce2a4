package models

import (
	"encoding/json"
	"time"
)

// MemoryUsage — ответ запроса интроспекции памяти, все значения в байтах.
//
// Поля:
//   - Used: занятая память (для runtime-источника — HeapAlloc)
//   - Total: память, полученная от ОС или доступная системе
//   - Limit: мягкий лимит памяти; 0, если лимит не задан
type MemoryUsage struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
	Limit uint64 `json:"limit"`
}

// Measurement представляет один снимок использования ресурсов.
//
// Структура неизменяема после добавления в журнал. Отсутствующие значения
// объявлены через указатели, чтобы отличать "0" от недоступных данных.
//
// Поля:
//   - Timestamp: монотонное смещение от начала работы сэмплера
//   - Memory: показания памяти; nil, если интроспекция недоступна
//   - TimerRegistrations: накопленное число регистраций периодических таймеров;
//     nil, если счётчик таймеров не подключён
//   - InteractiveElements: приблизительное число живых интерактивных элементов
//     (по умолчанию горутин). Это оценка, а не точный подсчёт подписчиков.
type Measurement struct {
	Timestamp           time.Duration
	Memory              *MemoryUsage
	TimerRegistrations  *int64
	InteractiveElements int
}

// measurementJSON — проводное представление Measurement.
type measurementJSON struct {
	TimestampMs         float64      `json:"timestamp_ms"`
	Memory              *MemoryUsage `json:"memory,omitempty"`
	TimerRegistrations  *int64       `json:"timer_registrations,omitempty"`
	InteractiveElements int          `json:"interactive_elements"`
}

// TimestampMs возвращает отметку времени в миллисекундах.
func (m Measurement) TimestampMs() float64 {
	return float64(m.Timestamp) / float64(time.Millisecond)
}

// MemoryUsedBytes возвращает занятую память и флаг её наличия.
func (m Measurement) MemoryUsedBytes() (uint64, bool) {
	if m.Memory == nil {
		return 0, false
	}
	return m.Memory.Used, true
}

// TimerCount возвращает счётчик регистраций таймеров и флаг его наличия.
func (m Measurement) TimerCount() (int64, bool) {
	if m.TimerRegistrations == nil {
		return 0, false
	}
	return *m.TimerRegistrations, true
}

// MarshalJSON сериализует отметку времени в миллисекундах.
func (m Measurement) MarshalJSON() ([]byte, error) {
	return json.Marshal(measurementJSON{
		TimestampMs:         m.TimestampMs(),
		Memory:              m.Memory,
		TimerRegistrations:  m.TimerRegistrations,
		InteractiveElements: m.InteractiveElements,
	})
}

// UnmarshalJSON восстанавливает Measurement из проводного представления.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var w measurementJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Timestamp = time.Duration(w.TimestampMs * float64(time.Millisecond))
	m.Memory = w.Memory
	m.TimerRegistrations = w.TimerRegistrations
	m.InteractiveElements = w.InteractiveElements
	return nil
}
