package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/voicerover-io/voicerover/cmd/rover-agent/app"
)

func main() {
	app.NewApp().Run()
}
