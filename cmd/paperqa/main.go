// Package main is the entry point for the PaperQA service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/paperqa/cmd/paperqa/app"
)

func main() {
	app.NewApp().Run()
}
