package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openboard/enginebridge"
)

var (
	// Global flags.
	enginePath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "enginebridge",
	Short: "Query UCI chess engines and manage local engine installations",
	Long: `Enginebridge drives a UCI chess engine (such as Stockfish) as a managed
subprocess and asks it for best moves at configurable difficulty levels.

Examples:
  # Best move from the starting position
  enginebridge bestmove

  # Best move for a given position at master strength
  enginebridge bestmove "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq -" --difficulty master

  # Show which engines are installed
  enginebridge detect`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&enginePath, "engine", "e", "", "path to the engine executable (default: auto-detect)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newLogger builds the CLI logger; verbose mode switches to development
// output with debug level.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

// openAdapter builds an adapter from the --engine flag, falling back to
// auto-detection.
func openAdapter(opts ...enginebridge.Option) (*enginebridge.Adapter, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	opts = append(opts, enginebridge.WithLogger(logger))

	if enginePath != "" {
		adapter, err := enginebridge.New(enginePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("starting engine: %w", err)
		}
		return adapter, nil
	}

	adapter, err := enginebridge.NewWithAutoDetection(opts...)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
