package sampler

import (
	"sync"
	"time"

	models "github.com/RoGogDBD/leakcheck/internal/model"
)

// Log — упорядоченный журнал измерений, допускающий только добавление.
//
// Порядок вставки совпадает с хронологическим: отметки времени строго
// возрастают. Запись, чья отметка не больше последней, сдвигается на 1ns
// вперёд. Мьютекс защищает журнал от читателей из других горутин
// (например, HTTP-обработчиков), писатель во время прогона один.
type Log struct {
	mu      sync.RWMutex
	entries []models.Measurement
}

// NewLog создаёт пустой журнал.
func NewLog() *Log {
	return &Log{}
}

// Append добавляет измерение с отметкой ts и возвращает сохранённую запись.
func (l *Log) Append(m models.Measurement, ts time.Duration) models.Measurement {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 {
		if last := l.entries[n-1].Timestamp; ts <= last {
			ts = last + 1
		}
	}
	m.Timestamp = ts
	l.entries = append(l.entries, m)
	return m
}

// Snapshot возвращает копию журнала.
func (l *Log) Snapshot() []models.Measurement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]models.Measurement, len(l.entries))
	copy(result, l.entries)
	return result
}

// Len возвращает число измерений.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last возвращает последнее измерение.
func (l *Log) Last() (models.Measurement, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return models.Measurement{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Reset начинает новый журнал. Ранее выданные снимки не меняются.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
