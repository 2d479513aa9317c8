package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/go-logr/stdr"
	"github.com/konveyor/awty/progress"
	"github.com/konveyor/awty/progress/reporter"
	"golang.org/x/sync/errgroup"
)

const (
	totalUnits = 900
	workers    = 6
)

// Demo program that shows several workers feeding one sink while a channel
// reporter drives the display.
func main() {
	fmt.Println("=== Progress Reporting Demo ===")

	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the reporter closes its channel once ctx is cancelled
	channelReporter := reporter.NewChannelReporter(ctx, reporter.WithLogger(logger))

	strategy, err := progress.NewChunkedPercentage(2)
	if err != nil {
		logger.Error(err, "creating strategy")
		os.Exit(1)
	}
	op, err := progress.NewOperation("indexing", int64(totalUnits), strategy, progress.WithLogger(logger))
	if err != nil {
		logger.Error(err, "creating operation")
		os.Exit(1)
	}
	op.Report(channelReporter)

	go func() {
		op.Done(process(ctx, op.Sink))
		cancel()
	}()

	displayProgress(channelReporter)

	fmt.Println("\n=== Demo Complete ===")
}

// process splits the work into chunks handled by parallel workers, each
// adding to the shared sink as units finish.
func process(ctx context.Context, sink *progress.Sink[int64]) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	perChunk := totalUnits / workers
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < perChunk; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Duration(1+rand.Intn(5)) * time.Millisecond):
				}
				sink.Add(1)
			}
			return nil
		})
	}
	return g.Wait()
}

// displayProgress shows progress updates with a progress bar
func displayProgress(r *reporter.ChannelReporter) {
	for event := range r.Events() {
		switch event.Stage {
		case progress.StageStarted:
			fmt.Printf("⏳ %s: %d units\n", event.Operation, event.Total)
		case progress.StageProgress:
			bar := drawProgressBar(event.Percent, 40)
			fmt.Printf("\r🔍 %s: %s %3d%% (%d/%d)", event.Operation, bar, event.Percent, event.Current, event.Total)
		case progress.StageComplete:
			fmt.Printf("\n✅ %s complete\n", event.Operation)
		case progress.StageError:
			fmt.Printf("\n❌ %s failed: %s\n", event.Operation, event.Error)
		}
	}
}

// drawProgressBar creates a visual progress bar
func drawProgressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s]", bar)
}
