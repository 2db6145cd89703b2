// Package main is the entry point for the cable modem monitor.
package main

import (
	"os"

	"github.com/BowlesCR/cable-modem-monitor/cmd/cmm/app"
	"github.com/BowlesCR/cable-modem-monitor/internal/logger"
)

func main() {
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
