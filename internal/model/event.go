package models

import "time"

// RunState — состояние диагностического прогона.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunCancelled RunState = "cancelled"
)

// RunEvent представляет завершение диагностического прогона.
type RunEvent struct {
	RunID        string        `json:"run_id"`
	State        RunState      `json:"state"`
	FinishedAt   time.Time     `json:"finished_at"`
	Measurements []Measurement `json:"measurements"`
}

// RunObserver интерфейс наблюдателя за завершением прогонов.
type RunObserver interface {
	OnRunEvent(event RunEvent) error
}

// RunStatus — снимок состояния прогона для панели управления.
type RunStatus struct {
	ID           string   `json:"id"`
	State        RunState `json:"state"`
	Planned      int      `json:"planned"`
	SamplesTaken int      `json:"samples_taken"`
	WindowMs     int64    `json:"window_ms"`
}
