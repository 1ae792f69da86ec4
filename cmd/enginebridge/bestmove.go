package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"

	"github.com/openboard/enginebridge"
)

var bestmoveCmd = &cobra.Command{
	Use:   "bestmove [FEN]",
	Short: "Ask the engine for the best move in a position",
	Long: `Ask the engine for the best move in a chess position given in FEN
notation. Without an argument the standard starting position is used.

Examples:
  # Starting position at the default difficulty
  enginebridge bestmove

  # A specific position at master strength
  enginebridge bestmove "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3" --difficulty master

  # A hint for the side to move, as JSON
  enginebridge bestmove --hint --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBestMove,
}

var (
	difficultyLabel string
	asHint          bool
	outputJSON      bool
	showTiming      bool
)

func init() {
	bestmoveCmd.Flags().StringVarP(&difficultyLabel, "difficulty", "d", enginebridge.DefaultDifficulty.String(), "difficulty level (beginner, intermediate, advanced, master)")
	bestmoveCmd.Flags().BoolVar(&asHint, "hint", false, "request a hint instead of a move to play")
	bestmoveCmd.Flags().BoolVar(&outputJSON, "json", false, "output result as JSON")
	bestmoveCmd.Flags().BoolVar(&showTiming, "timing", false, "show search timing")
	rootCmd.AddCommand(bestmoveCmd)
}

func runBestMove(cmd *cobra.Command, args []string) error {
	difficulty, err := enginebridge.ParseDifficulty(difficultyLabel)
	if err != nil {
		return err
	}

	game := chess.NewGame()
	if len(args) == 1 {
		opt, err := chess.FEN(args[0])
		if err != nil {
			return fmt.Errorf("invalid FEN %q: %w", args[0], err)
		}
		game = chess.NewGame(opt)
	}

	adapter, err := openAdapter()
	if err != nil {
		return err
	}
	defer adapter.Shutdown()

	ctx := context.Background()
	start := time.Now()

	var res *enginebridge.Result
	if asHint {
		res, err = adapter.GetHint(ctx, game, difficulty)
	} else {
		res, err = adapter.GetBestMove(ctx, game, difficulty)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	elapsed := time.Since(start)
	if outputJSON {
		printResultJSON(res, elapsed)
	} else {
		printResultText(res, elapsed)
	}
	return nil
}

func printResultText(res *enginebridge.Result, elapsed time.Duration) {
	fmt.Printf("Best move: %s\n", res.BestMove)
	fmt.Printf("Score:     %s\n", res.Score())
	fmt.Printf("Depth:     %d\n", res.Depth)
	if res.Ponder != "" {
		fmt.Printf("Ponder:    %s\n", res.Ponder)
	}
	if len(res.PV) > 0 {
		fmt.Printf("PV:        %s\n", strings.Join(res.PV, " "))
	}
	if showTiming {
		fmt.Printf("Time:      %s\n", elapsed)
	}
}

func printResultJSON(res *enginebridge.Result, elapsed time.Duration) {
	fmt.Printf(`{"bestmove":%q,"score":%q,"depth":%d`, res.BestMove, res.Score(), res.Depth)
	if res.Ponder != "" {
		fmt.Printf(`,"ponder":%q`, res.Ponder)
	}
	if len(res.PV) > 0 {
		fmt.Print(`,"pv":[`)
		for i, mv := range res.PV {
			if i > 0 {
				fmt.Print(",")
			}
			fmt.Printf("%q", mv)
		}
		fmt.Print("]")
	}
	if showTiming {
		fmt.Printf(`,"elapsed_ms":%d`, elapsed.Milliseconds())
	}
	fmt.Println("}")
}
