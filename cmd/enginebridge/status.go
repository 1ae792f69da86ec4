package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openboard/enginebridge/internal/install"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine installation status",
	Long: `Show whether Stockfish is installed on the system or locally, which
version is installed, and whether an update is available.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	mgr := install.NewManager(install.WithLogger(logger))

	st := mgr.Status(context.Background())

	fmt.Printf("Platform supports auto-install: %v\n", st.PlatformSupported)
	if st.SystemInstalled {
		fmt.Printf("System install:  %s\n", st.SystemPath)
	} else {
		fmt.Println("System install:  not found")
	}
	if st.LocalInstalled {
		fmt.Printf("Local install:   %s (%s)\n", st.LocalPath, st.LocalVersion)
		if st.LatestVersion != "" {
			fmt.Printf("Latest release:  %s\n", st.LatestVersion)
		}
		if st.UpdateAvailable {
			fmt.Println("An update is available; run 'enginebridge install --update'.")
		}
	} else {
		fmt.Println("Local install:   not found")
	}

	if path, err := mgr.BestEnginePath(); err == nil {
		fmt.Printf("Engine in use:   %s\n", path)
	} else {
		fmt.Println("Engine in use:   none")
	}
	return nil
}
