package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thread/attackfeed"
	"thread/classifier"
	"thread/config"
	"thread/database"
	"thread/handlers"
	"thread/models"
	"thread/pipeline"
	"thread/review"
)

const version = "1.0.0"

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:   "thread",
		Short: "Thread maps threat reports onto the ATT&CK framework",
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yml", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the web service and analysis pipeline",
		RunE:  func(*cobra.Command, []string) error { return runServe() },
	}
	ingest := &cobra.Command{
		Use:   "ingest-attack",
		Short: "Fold the upstream ATT&CK feed into the knowledge store",
		RunE:  func(*cobra.Command, []string) error { return runIngest() },
	}
	rebuild := &cobra.Command{
		Use:   "rebuild-models",
		Short: "Force a full rebuild of the per-technique classifiers",
		RunE:  func(*cobra.Command, []string) error { return runRebuild() },
	}
	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("thread " + version)
		},
	}
	root.AddCommand(serve, ingest, rebuild, ver)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap wires the shared components every command needs.
func bootstrap() (config.Config, *database.Store, *zap.SugaredLogger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return cfg, nil, nil, err
	}
	sugar := logger.Sugar()
	db, err := database.Open(cfg.DBEngine, cfg.DBDSN)
	if err != nil {
		return cfg, nil, nil, err
	}
	return cfg, database.NewStore(db, sugar), sugar, nil
}

func ingestFeed(cfg config.Config, store *database.Store, log *zap.SugaredLogger) error {
	var entries map[string]*attackfeed.Entry
	if cfg.TaxiiLocal == config.FeedLocalJSON {
		b, err := attackfeed.LoadBundle(cfg.JSONFile)
		if err != nil {
			return err
		}
		entries = attackfeed.Transform(b)
	} else {
		b, err := attackfeed.FetchBundle(attackfeed.EnterpriseBundleURL)
		if err != nil {
			return err
		}
		entries = attackfeed.Transform(b)
	}
	_, err := attackfeed.NewIngester(store, log).Run(entries)
	return err
}

func runServe() error {
	cfg, store, sugar, err := bootstrap()
	if err != nil {
		return err
	}
	defer sugar.Sync()

	if cfg.Build {
		if err := ingestFeed(cfg, store, sugar); err != nil {
			return fmt.Errorf("startup ingest: %w", err)
		}
	}

	lib := classifier.NewLibrary(cfg.AttackDict, sugar)
	if err := lib.LoadOrBuild(store); err != nil {
		return fmt.Errorf("prepare classifiers: %w", err)
	}

	splitter, err := pipeline.NewSplitter(cfg.SentenceLimit)
	if err != nil {
		return err
	}
	queue := pipeline.NewQueue(cfg.QueueLimit)
	svc := pipeline.NewService(store, lib, splitter, pipeline.NewFetcher(),
		queue, cfg.MaxTasks, sugar)
	// A loaded dictionary may predate techniques the startup ingest just
	// added; train only those.
	if err := svc.SyncModels(); err != nil {
		return fmt.Errorf("sync classifiers: %w", err)
	}
	if err := svc.PrepareQueue(); err != nil {
		return fmt.Errorf("prepare queue: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	reviewer := review.NewReviewer(store, sugar)
	lifecycle := review.NewLifecycle(store)
	lifecycle.OnComplete = func(r *models.Report) {
		sugar.Infow("report completed", "report", r.Title)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	handlers.New(store, svc, reviewer, lifecycle, sugar).Register(r)

	sugar.Infow("starting thread", "addr", cfg.Addr())
	if err := r.Run(cfg.Addr()); err != nil {
		log.Fatal("failed to start server:", err)
	}
	return nil
}

func runIngest() error {
	cfg, store, sugar, err := bootstrap()
	if err != nil {
		return err
	}
	defer sugar.Sync()
	return ingestFeed(cfg, store, sugar)
}

func runRebuild() error {
	cfg, store, sugar, err := bootstrap()
	if err != nil {
		return err
	}
	defer sugar.Sync()
	lib := classifier.NewLibrary(cfg.AttackDict, sugar)
	return lib.BuildAll(store)
}
