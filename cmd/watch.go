package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefinder/internal/livesync"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and ingest new photos as they appear",
	Long: `Start a live sync session over a directory (a camera hot folder,
for example). The directory is polled on an interval; new image files are
ingested into the event exactly once. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("event", "", "Event ID to ingest into (required)")
	watchCmd.Flags().Duration("interval", 0, "Poll interval (defaults to SYNC_INTERVAL_SEC)")
	_ = watchCmd.MarkFlagRequired("event")
}

func runWatch(cmd *cobra.Command, args []string) error {
	eventID := mustGetString(cmd, "event")
	interval := mustGetDuration(cmd, "interval")

	ctx := context.Background()
	s, err := buildStack(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if interval <= 0 {
		interval = s.cfg.Sync.Interval
	}

	session := livesync.NewSession(args[0], eventID, interval, s.cfg.Sync.QueueSize, s.pipeline, s.logger)

	lines := session.Events().AddListener()
	go func() {
		for line := range lines {
			fmt.Println(line)
		}
	}()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting live sync: %w", err)
	}

	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nStopping, waiting for in-flight photos...")
	session.Stop()

	stats := session.Stats()
	fmt.Printf("Session finished: %d photos stored, %d faces indexed, %d failures\n",
		stats.PhotosStored, stats.FacesIndexed, stats.Failures)
	return nil
}
