package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openboard/enginebridge/internal/detect"
	"github.com/openboard/enginebridge/internal/install"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and install the latest Stockfish release",
	Long: `Download the latest Stockfish release into the local engines directory.
Automatic installation is only supported on Windows; on other platforms
use your system package manager.`,
	RunE: runInstall,
}

var (
	doUpdate    bool
	doUninstall bool
)

func init() {
	installCmd.Flags().BoolVar(&doUpdate, "update", false, "update an existing local install")
	installCmd.Flags().BoolVar(&doUninstall, "uninstall", false, "remove the local install")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	mgr := install.NewManager(
		install.WithLogger(logger),
		install.WithProgress(install.DefaultProgressFunc),
	)

	if doUninstall {
		if err := mgr.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Local installation removed.")
		return nil
	}

	ctx := context.Background()
	if doUpdate {
		err = mgr.Update(ctx)
	} else {
		err = mgr.Install(ctx)
	}

	if errors.Is(err, install.ErrUnsupportedPlatform) {
		fmt.Println("Automatic installation is not supported on this platform.")
		fmt.Println()
		fmt.Println(detect.New().InstallInstructions("stockfish"))
		return nil
	}
	return err
}
