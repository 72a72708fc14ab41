// Package main is the entry point for the OTA listing monitor.
package main

import (
	"os"

	"github.com/donaldgifford/ota-listing-monitor/cmd/ota-monitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
