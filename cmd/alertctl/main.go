// Package main is the entry point for the recurring alert operator CLI.
package main

import (
	"os"

	"github.com/almadesk/recurring-alerts/cmd/alertctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
