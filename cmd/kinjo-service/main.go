package main

import (
	"os"

	_ "time/tzdata"

	"github.com/kafadas/kinjo/kinjoservice"
)

func main() {
	if err := kinjoservice.Run(); err != nil {
		os.Exit(1)
	}
}
