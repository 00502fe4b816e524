package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Take a screenshot from the command line",
}

var captureFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Capture the full screen across every display",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		captured, err := app.orch.CaptureFullScreen(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(captured.Path)
		return nil
	},
}

var captureAreaCmd = &cobra.Command{
	Use:   "area",
	Short: "Select an area with the mouse and capture it",
	Long: `Show the selection overlay on every display. Drag to select an area,
release to capture, press Escape to cancel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.close()

		captured, err := app.orch.CaptureArea(cmd.Context())
		if err != nil {
			return err
		}
		if captured == nil {
			fmt.Println("cancelled")
			return nil
		}
		fmt.Println(captured.Path)
		return nil
	},
}

func init() {
	captureCmd.AddCommand(captureFullCmd)
	captureCmd.AddCommand(captureAreaCmd)
	rootCmd.AddCommand(captureCmd)
}
