package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Penitant/app-voice-recorder/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a new voice clip",
	Long: `Record from the default microphone until interrupted.

The clip is written to a temporary file while recording and committed to the
recordings directory on stop. Press Ctrl+C to stop and save.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Debug("Creating service instance")
		svc := service.New(cfg)

		svc.SetRecordingProgressFunc(func(elapsed time.Duration) {
			fmt.Printf("\rRecording... %s", elapsed.Round(time.Second))
		})

		if err := svc.StartRecording(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

		slog.Info("Recording started - Press Ctrl+C to stop and save")

		// Handle interruption
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		fmt.Println()
		slog.Info("Stopping recording...")

		result, err := svc.StopRecording()
		if err != nil {
			return fmt.Errorf("failed to stop recording: %w", err)
		}

		fmt.Printf("Saved %s (%s) to %s\n", result.ID, result.Duration.Round(time.Second), result.Path)
		return nil
	},
}
