package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openboard/enginebridge/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List UCI engines found on this system",
	Long: `Search the local engines directory, PATH, and common install locations
for known UCI engines and list what is found.`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	detector := detect.New()
	engines := detector.ListAvailable()

	if len(engines) == 0 {
		fmt.Println("No UCI engines found.")
		fmt.Println()
		fmt.Println(detector.InstallInstructions("stockfish"))
		return nil
	}

	fmt.Printf("Found %d engine(s):\n", len(engines))
	for _, path := range engines {
		fmt.Printf("  %s\n", path)
	}
	return nil
}
