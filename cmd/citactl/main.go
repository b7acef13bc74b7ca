package main

import (
	"os"

	"github.com/cita-toolkit/citactl/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
