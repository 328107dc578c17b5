package main

import (
	"os"

	_ "time/tzdata"

	"github.com/kafadas/kinjo/streakworker"
)

func main() {
	if err := streakworker.Run(); err != nil {
		os.Exit(1)
	}
}
