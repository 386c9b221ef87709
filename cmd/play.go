package cmd

import (
	"fmt"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/playback"
	"github.com/Penitant/app-voice-recorder/internal/service"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [clip-id]",
	Short: "Play a recorded clip",
	Long:  `Play a clip from the recordings directory and block until it finishes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clipID := args[0]

		svc := service.New(cfg)
		if err := svc.Refresh(); err != nil {
			return fmt.Errorf("failed to scan recordings: %w", err)
		}

		done := make(chan playback.Status, 1)
		svc.SetPlaybackStatusFunc(func(st playback.Status) {
			switch st.State {
			case playback.StateFinished, playback.StateError:
				select {
				case done <- st:
				default:
				}
			case playback.StatePlaying:
				fmt.Printf("\r%s / %s", st.Position.Round(time.Second), st.Duration.Round(time.Second))
			}
		})

		if err := svc.Play(clipID); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		st := <-done
		fmt.Println()
		if st.State == playback.StateError {
			return fmt.Errorf("playback failed: %s", st.Err)
		}
		return nil
	},
}
