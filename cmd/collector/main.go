// Package main runs one Soledex ingestion pass: it loads the worklist,
// drives the pipeline, and prints the run report. SIGINT stops the run
// between items; the report is produced either way.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/soledexapp/soledex-server/internal/config"
	"github.com/soledexapp/soledex-server/internal/di"
	"github.com/soledexapp/soledex-server/internal/domain"
	"github.com/soledexapp/soledex-server/internal/ingest"
	"github.com/soledexapp/soledex-server/internal/logger"
)

func main() {
	injector := di.NewContainer()
	defer func() {
		if err := injector.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
		}
	}()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := do.MustInvoke[*logger.Logger](injector)

	queries, err := ingest.LoadWorklist(cfg.Ingest.QueryFile)
	if err != nil {
		log.Fatal("Failed to load worklist", "path", cfg.Ingest.QueryFile, "error", err)
	}
	if len(queries) == 0 {
		log.Fatal("Worklist is empty", "path", cfg.Ingest.QueryFile)
	}

	deps, err := do.Invoke[ingest.Deps](injector)
	if err != nil {
		log.Fatal("Failed to assemble pipeline", "error", err)
	}

	coord := ingest.NewCoordinator(ingest.Config{
		Queries:        queries,
		Workers:        cfg.Ingest.Workers,
		MaxAttempts:    cfg.Ingest.MaxAttempts,
		RetryBaseDelay: cfg.Ingest.RetryBaseDelay,
		Deadline:       cfg.Ingest.Deadline,
		ItemsPerQuery:  cfg.Ingest.ItemsPerQuery,
		ImagesPerItem:  cfg.Ingest.ImagesPerItem,
		TargetItems:    cfg.Ingest.TargetItems,
		TargetImages:   cfg.Ingest.TargetImages,
	}, deps, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := coord.Run(ctx)
	if err != nil {
		log.Error("Run failed", "error", err)
	}
	printReport(report)

	if report.State == domain.RunFailed {
		os.Exit(1)
	}
}

func printReport(report *domain.RunReport) {
	fmt.Printf("\nRun %s: %s (%s)\n", report.ID, report.State, report.EndedAt.Sub(report.StartedAt).Round(10*time.Millisecond))
	fmt.Printf("  items:   %d seen, %d created, %d enriched\n",
		report.Stats.ItemsSeen, report.Stats.ItemsCreated, report.Stats.ItemsEnriched)
	fmt.Printf("  images:  %d seen, %d accepted, %d duplicates, %d quality-rejected\n",
		report.Stats.ImagesSeen, report.Stats.ImagesAccepted,
		report.Stats.DuplicatesRejected, report.Stats.QualityRejected)
	fmt.Printf("  queries: %d skipped, %d errors\n", report.Stats.QueriesSkipped, report.Stats.Errors)

	if len(report.Stats.RejectReasons) > 0 {
		fmt.Println("  reject reasons:")
		for reason, count := range report.Stats.RejectReasons {
			fmt.Printf("    %-18s %d\n", reason, count)
		}
	}
	if len(report.RecentErrs) > 0 {
		fmt.Println("  recent errors:")
		for _, msg := range report.RecentErrs {
			fmt.Printf("    %s\n", msg)
		}
	}
}
