package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/service"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded clips",
	Long: `Rescan the recordings directory and print the catalog, newest first.

Files whose names cannot be parsed are still listed under their raw file
name so no recording silently disappears from the catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := service.New(cfg)

		if err := svc.Refresh(); err != nil {
			return fmt.Errorf("failed to scan recordings: %w", err)
		}

		clips := svc.Clips()
		if len(clips) == 0 {
			fmt.Printf("No recordings in %s\n", cfg.Storage.Directory)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tDURATION")
		for _, c := range clips {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				c.ID,
				c.CreatedAt.Format(time.DateTime),
				c.Duration.Round(time.Second))
		}
		return w.Flush()
	},
}
