package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefinder/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir|files...>",
	Short: "Ingest photos into an event",
	Long: `Ingest photos into an event partition: detect faces, optimize the
images, upload them to object storage, and index the face embeddings.
Accepts a directory (all images inside, non-recursive) or explicit files.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("event", "", "Event ID to ingest into (required)")
	ingestCmd.Flags().Int("concurrency", 1, "Number of photos processed in parallel")
	_ = ingestCmd.MarkFlagRequired("event")
}

// collectImagePaths expands directory arguments into their image files.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".jpg", ".jpeg", ".png", ".webp":
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	eventID := mustGetString(cmd, "event")
	concurrency := mustGetInt(cmd, "concurrency")

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found")
	}

	ctx := context.Background()
	s, err := buildStack(ctx, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	jobs := make([]ingest.Job, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		jobs = append(jobs, ingest.Job{
			EventID:    eventID,
			SourceName: filepath.Base(path),
			Data:       data,
		})
	}

	fmt.Printf("Ingesting %d photos into event %s\n\n", len(jobs), eventID)

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetDescription("Ingesting photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	// Process photos with concurrency
	var ok, failed, totalFaces int
	var failures []ingest.Result
	var mu sync.Mutex

	sem := make(chan struct{}, max(concurrency, 1))
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job ingest.Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := s.pipeline.IngestOne(ctx, job)

			mu.Lock()
			if res.Err != nil {
				failed++
				failures = append(failures, res)
			} else {
				ok++
				totalFaces += res.Faces
			}
			mu.Unlock()
			bar.Add(1)
		}(job)
	}
	wg.Wait()
	fmt.Println()

	fmt.Printf("\nDone: %d ok, %d failed, %d faces indexed\n", ok, failed, totalFaces)
	for _, res := range failures {
		fmt.Printf("  %s: %v\n", res.SourceName, res.Err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(jobs))
	}
	return nil
}
