package main

import (
	"database/sql"
	"log"
	"net/http"

	"kpm-monitor/pkg/api"
	"kpm-monitor/pkg/config"
	"kpm-monitor/pkg/repository"
	"kpm-monitor/pkg/service"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	store := repository.NewStore(db)
	services := service.New(store, logger, service.Options{
		SubmissionDueDays: cfg.SubmissionDueDays,
		ReportDueDays:     cfg.ReportDueDays,
		SummaryCycles:     cfg.SummaryCycles,
	})

	server := api.NewServer(services, logger)

	logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, server.Router()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = lvl
	return zcfg.Build()
}
