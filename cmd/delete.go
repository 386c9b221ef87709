package cmd

import (
	"fmt"

	"github.com/Penitant/app-voice-recorder/internal/service"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [clip-id]",
	Short: "Delete a recorded clip",
	Long:  `Remove a clip from the recordings directory and the catalog.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clipID := args[0]

		svc := service.New(cfg)
		if err := svc.Refresh(); err != nil {
			return fmt.Errorf("failed to scan recordings: %w", err)
		}

		if err := svc.Delete(clipID); err != nil {
			return fmt.Errorf("failed to delete clip: %w", err)
		}

		fmt.Printf("Deleted %s\n", clipID)
		return nil
	},
}
