package timers

import "time"

// В пакете timers тикеры разрешены.
func Start(interval time.Duration) *time.Ticker {
	return time.NewTicker(interval)
}
