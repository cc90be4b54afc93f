package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match <selfie.jpg>",
	Short: "Find event photos matching a selfie",
	Long: `Detect the most confident face in a selfie and scan the event
partition for photos containing a face within the distance threshold.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("event", "", "Event ID to search (required)")
	matchCmd.Flags().Float64("threshold", 0, "Distance threshold (defaults to MATCH_THRESHOLD)")
	matchCmd.Flags().Bool("ranked", false, "Order results by distance and show it")
	_ = matchCmd.MarkFlagRequired("event")
}

func runMatch(cmd *cobra.Command, args []string) error {
	eventID := mustGetString(cmd, "event")
	threshold := mustGetFloat64(cmd, "threshold")
	ranked := mustGetBool(cmd, "ranked")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading selfie: %w", err)
	}

	ctx := context.Background()
	s, err := buildStack(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if threshold <= 0 {
		threshold = s.cfg.Match.Threshold
	}

	face, err := s.detector.DetectPrimary(ctx, data)
	if err != nil {
		return fmt.Errorf("detecting face: %w", err)
	}
	if face == nil {
		fmt.Println("No face detected in the selfie")
		return nil
	}

	if ranked {
		matches, err := s.engine.MatchRanked(ctx, eventID, face.Embedding, threshold)
		if err != nil {
			return fmt.Errorf("matching: %w", err)
		}
		if len(matches) == 0 {
			fmt.Println("No matching photos found")
			return nil
		}
		fmt.Printf("Found %d matching photos:\n", len(matches))
		for _, m := range matches {
			fmt.Printf("  %.4f  %s\n", m.Distance, m.PhotoURL)
		}
		return nil
	}

	urls, err := s.engine.Match(ctx, eventID, face.Embedding, threshold)
	if err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if len(urls) == 0 {
		fmt.Println("No matching photos found")
		return nil
	}
	fmt.Printf("Found %d matching photos:\n", len(urls))
	for _, url := range urls {
		fmt.Printf("  %s\n", url)
	}
	return nil
}
