package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sentinelkg/sentinel/internal/config"
	"github.com/sentinelkg/sentinel/internal/extract"
	"github.com/sentinelkg/sentinel/internal/graph"
	"github.com/sentinelkg/sentinel/internal/orchestrator"
	"github.com/sentinelkg/sentinel/internal/scrape"
	"github.com/sentinelkg/sentinel/internal/store"
)

var healDays int

var healCmd = &cobra.Command{
	Use:   "heal",
	Short: "Run one healing pass against stale sources",
	RunE:  runHeal,
}

func init() {
	healCmd.Flags().IntVar(&healDays, "days", 0, "staleness threshold in days (defaults to the server's configured value)")
}

// runHeal connects to the graph store directly rather than through the
// running server, since a healing pass is not exposed over HTTP.
func runHeal(cmd *cobra.Command, args []string) error {
	config.Load()
	logger := zap.NewNop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	graphCfg := config.Graph()
	client, err := graph.NewClient(ctx, graph.Config{
		URI:      graphCfg.URI,
		User:     graphCfg.User,
		Password: graphCfg.Password,
		Database: graphCfg.Database,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect graph: %w", err)
	}
	defer client.Close(ctx)

	st := store.New(client, logger)

	scraperCfg := config.Scraper()
	sc := scrape.New(scrape.Config{
		APIKey:        scraperCfg.APIKey,
		AttemptBudget: scraperCfg.AttemptBudget,
		BaseDelay:     time.Duration(scraperCfg.BaseDelay) * time.Second,
		BackoffFactor: float64(scraperCfg.BackoffFactor),
		MaxDelay:      time.Duration(scraperCfg.MaxDelay) * time.Second,
		MinVendorGap:  time.Duration(scraperCfg.MinVendorGap) * time.Second,
	}, logger)

	modelCfg := config.Model()
	ex := extract.New(os.Getenv("OPENAI_API_KEY"), extract.Config{
		Model:   modelCfg.Name,
		BaseURL: modelCfg.BaseURL,
	}, logger)

	healCfg := config.Heal()
	if healDays > 0 {
		healCfg.DaysThreshold = healDays
	}

	orch := orchestrator.New(sc, ex, st, orchestrator.HealConfig{
		DaysThreshold: healCfg.DaysThreshold,
		IntervalHours: healCfg.IntervalHours,
		Parallelism:   healCfg.Parallelism,
	}, logger)

	status := orchestrator.NewStatus()
	if err := orch.HealNow(ctx, status); err != nil {
		return fmt.Errorf("healing pass: %w", err)
	}

	snap := status.Snapshot()
	fmt.Printf("healing pass complete: %d/%d sources processed, outcomes=%v\n", snap.Completed, snap.Total, snap.LastOutcomes)
	return nil
}
