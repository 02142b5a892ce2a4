package pkg

import (
	"log"
	"os"
	"time"
)

// panic - детектит.
func FuncWithPanic() {
	panic("ошибка") // want "use of builtin panic is discouraged"
}

// log.Fatal - детектит.
func FuncWithFatal() {
	log.Fatal("вне main.main") // want "call to log.Fatal or os.Exit outside main.main"
}

// os.Exit - детектит.
func FuncWithExit() {
	os.Exit(1) // want "call to log.Fatal or os.Exit outside main.main"
}

// log.Print - всё ГУДчи.
func FuncAllowed() {
	log.Println("ОК")
}

// time.NewTicker - детектит.
func FuncWithTicker() {
	t := time.NewTicker(time.Second) // want "periodic timer created outside timers.RegisterPeriodic"
	defer t.Stop()
}

// time.Tick - детектит.
func FuncWithTick() <-chan time.Time {
	return time.Tick(time.Second) // want "periodic timer created outside timers.RegisterPeriodic"
}

// time.AfterFunc - одноразовый таймер, всё ГУДчи.
func FuncWithAfterFunc() {
	time.AfterFunc(time.Second, func() {}).Stop()
}
