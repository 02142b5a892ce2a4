package main

import (
	"log"
	"os"
)

// В main.main - всё ГУДчи.
func main() {
	if len(os.Args) > 2 {
		log.Fatal("bad args")
	}
	helper()
	os.Exit(0)
}

// Вне main.main - детектит.
func helper() {
	os.Exit(1) // want "call to log.Fatal or os.Exit outside main.main"
}
