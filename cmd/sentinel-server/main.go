// Command sentinel-server runs the HTTP facade and the background
// healing loop that keeps ingested facts corroborated over time.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sentinelkg/sentinel/internal/config"
	"github.com/sentinelkg/sentinel/internal/extract"
	"github.com/sentinelkg/sentinel/internal/graph"
	"github.com/sentinelkg/sentinel/internal/httpapi"
	"github.com/sentinelkg/sentinel/internal/jobs"
	"github.com/sentinelkg/sentinel/internal/orchestrator"
	"github.com/sentinelkg/sentinel/internal/query"
	"github.com/sentinelkg/sentinel/internal/scrape"
	"github.com/sentinelkg/sentinel/internal/store"
)

// AppState holds every long-lived dependency the server needs to shut
// down cleanly.
type AppState struct {
	Graph        *graph.Client
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Status       *orchestrator.Status
	Jobs         *jobs.Queue
	Logger       *zap.Logger
}

func main() {
	config.Load()

	logger := initLogger()
	logger.Info("configuration loaded")

	as, err := newAppState(context.Background(), logger)
	if err != nil {
		logger.Fatal("failed to initialize application state", zap.Error(err))
	}

	router := httpapi.NewRouter(&httpapi.AppContext{
		Store:        as.Store,
		Orchestrator: as.Orchestrator,
		Query:        query.New(as.Graph),
		Status:       as.Status,
		Jobs:         as.Jobs,
		Graph:        as.Graph,
		Logger:       as.Logger,
	})

	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)
	server := &http.Server{Addr: addr, Handler: router}

	healCtx, cancelHeal := context.WithCancel(context.Background())
	go func() {
		if err := as.Orchestrator.RunHealingLoop(healCtx, as.Status); err != nil && !errors.Is(err, context.Canceled) {
			as.Logger.Error("healing loop stopped", zap.Error(err))
		}
	}()

	if as.Jobs != nil {
		worker := jobs.NewWorker(as.Jobs, &orchestratorRunner{orchestrator: as.Orchestrator, status: as.Status}, 5*time.Second, as.Logger)
		go func() {
			if err := worker.Run(healCtx); err != nil && !errors.Is(err, context.Canceled) {
				as.Logger.Error("job worker stopped", zap.Error(err))
			}
		}()
	}

	done := setupSignalHandler(as, server, cancelHeal, as.Logger)

	as.Logger.Info("starting sentinel server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		as.Logger.Fatal("failed to start server", zap.Error(err))
	}

	<-done
	as.Logger.Info("server shutdown complete")
}

func newAppState(ctx context.Context, logger *zap.Logger) (*AppState, error) {
	graphCfg := config.Graph()
	client, err := graph.NewClient(ctx, graph.Config{
		URI:      graphCfg.URI,
		User:     graphCfg.User,
		Password: graphCfg.Password,
		Database: graphCfg.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect graph: %w", err)
	}

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
	orch := orchestrator.New(sc, ex, st, orchestrator.HealConfig{
		DaysThreshold: healCfg.DaysThreshold,
		IntervalHours: healCfg.IntervalHours,
		Parallelism:   healCfg.Parallelism,
	}, logger)

	var jobQueue *jobs.Queue
	if brokerURL := config.Jobs().BrokerURL; brokerURL != "" {
		jobQueue, err = jobs.Open(brokerURL, 10)
		if err != nil {
			return nil, fmt.Errorf("connect job broker: %w", err)
		}
		logger.Info("durable job queue enabled")
	}

	return &AppState{
		Graph:        client,
		Store:        st,
		Orchestrator: orch,
		Status:       orchestrator.NewStatus(),
		Jobs:         jobQueue,
		Logger:       logger,
	}, nil
}

// orchestratorRunner adapts *orchestrator.Orchestrator to jobs.Runner.
type orchestratorRunner struct {
	orchestrator *orchestrator.Orchestrator
	status       *orchestrator.Status
}

func (r *orchestratorRunner) RunIngest(ctx context.Context, url string) error {
	result := r.orchestrator.ProcessURL(ctx, url)
	return result.Err
}

func (r *orchestratorRunner) RunHeal(ctx context.Context) error {
	return r.orchestrator.HealNow(ctx, r.status)
}

func initLogger() *zap.Logger {
	logCfg := config.Logger()

	var zcfg zap.Config
	if logCfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	switch logCfg.Level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return logger
}

func setupSignalHandler(as *AppState, server *http.Server, cancelHeal context.CancelFunc, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh
		logger.Info("shutting down server")

		cancelHeal()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("error during server shutdown", zap.Error(err))
		}

		if as.Jobs != nil {
			if err := as.Jobs.Close(); err != nil {
				logger.Error("error closing job queue", zap.Error(err))
			}
		}

		if err := as.Graph.Close(ctx); err != nil {
			logger.Error("error closing graph client", zap.Error(err))
		}

		done <- struct{}{}
	}()

	return done
}
