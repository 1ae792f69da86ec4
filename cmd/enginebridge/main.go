// Package main provides the enginebridge CLI tool for querying UCI chess
// engines and managing local engine installations.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
