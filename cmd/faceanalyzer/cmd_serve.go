package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/faceanalyzer/internal/analyze"
	"github.com/HerbHall/faceanalyzer/internal/catalog"
	"github.com/HerbHall/faceanalyzer/internal/config"
	"github.com/HerbHall/faceanalyzer/internal/history"
	"github.com/HerbHall/faceanalyzer/internal/llm/ollama"
	"github.com/HerbHall/faceanalyzer/internal/llm/resilience"
	"github.com/HerbHall/faceanalyzer/internal/logging"
	"github.com/HerbHall/faceanalyzer/internal/metrics"
	"github.com/HerbHall/faceanalyzer/internal/server"
	"github.com/HerbHall/faceanalyzer/internal/store"
	"github.com/HerbHall/faceanalyzer/internal/version"
	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"github.com/HerbHall/faceanalyzer/pkg/llm"
	"github.com/HerbHall/faceanalyzer/pkg/llm/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	settings, err := cfg.Settings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(settings.Log.Level, settings.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Face-Analyzer starting", zap.String("version", version.Short()))

	cat, err := loadCatalog(settings.Catalog.Path)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.String("path", settings.Catalog.Path), zap.Error(err))
	}
	engine, err := catalog.NewEngine(cat, logger.Named("catalog"), catalog.WithLimit(settings.Recommend.Limit))
	if err != nil {
		logger.Fatal("failed to build recommendation engine", zap.Error(err))
	}
	logger.Info("catalog loaded", zap.Int("services", cat.Len()), zap.Int("limit", engine.Limit()))

	provider, err := newProvider(settings.LLM, logger.Named("llm"))
	if err != nil {
		logger.Fatal("failed to create model provider", zap.Error(err))
	}

	m := metrics.New()
	analyzerOpts := []analyze.Option{analyze.WithMetrics(m)}
	if settings.LLM.Model != "" {
		analyzerOpts = append(analyzerOpts, analyze.WithModel(settings.LLM.Model))
	}
	analyzer := analyze.New(provider, engine, logger.Named("analyze"), analyzerOpts...)

	handlerOpts := []analyze.HandlerOption{analyze.WithMaxUploadBytes(settings.Server.MaxUploadBytes)}
	registrars := []server.RouteRegistrar{catalog.NewHandler(engine, logger.Named("catalog"))}

	if settings.History.Enabled {
		db, err := store.New(settings.History.Path, store.WithLogger(logger.Named("store")))
		if err != nil {
			logger.Fatal("failed to open history database", zap.String("path", settings.History.Path), zap.Error(err))
		}
		defer db.Close()

		repo, err := history.NewSQLiteRepository(context.Background(), db)
		if err != nil {
			logger.Fatal("failed to migrate history database", zap.Error(err))
		}
		handlerOpts = append(handlerOpts, analyze.WithHistory(repo))
		registrars = append(registrars, history.NewHandler(repo, logger.Named("history")))
		logger.Info("analysis history enabled", zap.String("path", settings.History.Path))
	}
	registrars = append(registrars, analyze.NewHandler(analyzer, logger.Named("analyze"), handlerOpts...))

	proxies, err := server.ParseTrustedProxies(settings.Server.TrustedProxies)
	if err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	srv := server.New(server.Config{
		Addr:           settings.Server.Addr(),
		CORSOrigins:    settings.Server.CORSOrigins,
		RateLimit:      rate.Limit(settings.Server.RateLimit.RPS),
		RateBurst:      settings.Server.RateLimit.Burst,
		LimitedPaths:   []string{"/analyze"},
		TrustedProxies: proxies,
		WriteTimeout:   settings.Server.WriteTimeout,
	}, logger, m, registrars...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("Face-Analyzer ready", zap.String("addr", settings.Server.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped unexpectedly", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("Face-Analyzer stopped")
}

func loadCatalog(path string) (*pkgcatalog.Catalog, error) {
	if path == "" {
		return pkgcatalog.Default()
	}
	return pkgcatalog.LoadFile(path)
}

func newProvider(s config.LLMSettings, logger *zap.Logger) (llm.Provider, error) {
	var (
		provider llm.Provider
		model    string
	)
	switch s.Provider {
	case "openai":
		p, err := openai.New(openai.Config{
			APIKey:  s.OpenAI.APIKey,
			BaseURL: s.OpenAI.BaseURL,
			Model:   s.Model,
			Timeout: s.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		provider, model = p, p.Model()
	case "ollama":
		p := ollama.New(ollama.Config{
			URL:     s.Ollama.URL,
			Model:   s.Model,
			Timeout: s.Timeout,
		}, logger)
		provider, model = p, p.Model()
	default:
		return nil, errors.New("unknown llm provider " + s.Provider)
	}
	logger.Info("model provider configured", zap.String("provider", s.Provider), zap.String("model", model))

	if !s.Breaker.Enabled {
		return provider, nil
	}
	return resilience.Wrap(provider, resilience.Settings{
		Name:        s.Provider,
		MaxFailures: s.Breaker.MaxFailures,
		Timeout:     s.Breaker.Timeout,
	}, logger), nil
}
