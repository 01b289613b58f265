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

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/account"
	"github.com/DelxAbde/panel-pal-translate/internal/api"
	"github.com/DelxAbde/panel-pal-translate/internal/config"
	"github.com/DelxAbde/panel-pal-translate/internal/db"
	"github.com/DelxAbde/panel-pal-translate/internal/detect"
	"github.com/DelxAbde/panel-pal-translate/internal/endpoint"
	"github.com/DelxAbde/panel-pal-translate/internal/events"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
	"github.com/DelxAbde/panel-pal-translate/internal/ocr"
	"github.com/DelxAbde/panel-pal-translate/internal/pipeline"
	"github.com/DelxAbde/panel-pal-translate/internal/service"
	"github.com/DelxAbde/panel-pal-translate/internal/translate"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP and WebSocket server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, cmd.String("log-level"))
		},
	}
}

func runServer(ctx context.Context, logLevel string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Infow("starting panelpal", "node", cfg.NodeID, "port", cfg.HTTPPort)

	jobStore, userStore, closeStore, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := ocrEngine(cfg)
	if err != nil {
		return err
	}

	httpClient := &http.Client{}
	extractor := ocr.NewClient(engine, ocr.Options{Languages: cfg.OCRLanguages, PageSegMode: cfg.OCRPSM}, cfg.OCRTimeout, logger)
	detector := detect.NewClient(endpoint.NewList(cfg.DetectEndpoints, cfg.EndpointRate), httpClient, cfg.DetectTimeout, logger)
	translator := translate.NewClient(endpoint.NewList(cfg.TranslateEndpoints, cfg.EndpointRate), httpClient, cfg.TranslateTimeout, logger)

	jobs := service.New(jobStore, pipeline.New(extractor, detector, translator, logger), events.NewHub(0), cfg.MaxConcurrentJobs, logger)

	accounts, err := account.NewService(userStore, cfg.SessionSecret, cfg.SessionTTL, logger)
	if err != nil {
		return fmt.Errorf("init accounts: %w", err)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(cfg, jobs, accounts, logger),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: job progress sockets stay open for the whole job.
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown", "error", err)
	}
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("job shutdown", "error", err)
	}
	logger.Info("stopped")
	return nil
}

// openStores returns badger-backed stores when DATA_DIR is set and in-memory
// stores otherwise.
func openStores(cfg *config.Config, logger *zap.SugaredLogger) (job.JobStore, account.UserStore, func(), error) {
	if cfg.DataDir == "" {
		return job.NewStore(), account.NewStore(), func() {}, nil
	}

	dbStore, err := db.NewStore(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open data dir: %w", err)
	}
	closeStore := func() {
		if err := dbStore.Close(); err != nil {
			logger.Errorw("close data dir", "error", err)
		}
	}

	jobStore := job.NewPersistentStore(dbStore)
	recovered, err := jobStore.RecoverInterrupted()
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	if len(recovered) > 0 {
		logger.Warnw("failed jobs interrupted by previous shutdown", "count", len(recovered), "ids", recovered)
	}

	logger.Infow("using persistent storage", "dir", cfg.DataDir)
	return jobStore, account.NewPersistentStore(dbStore), closeStore, nil
}

func ocrEngine(cfg *config.Config) (ocr.Engine, error) {
	switch cfg.OCREngine {
	case "", "tesseract":
		return ocr.NewTesseractEngine(cfg.TesseractPath), nil
	case "http":
		if cfg.OCRURL == "" {
			return nil, errors.New("OCR_ENGINE=http requires OCR_URL")
		}
		return ocr.NewHTTPEngine(cfg.OCRURL, &http.Client{}), nil
	default:
		return nil, fmt.Errorf("unknown OCR_ENGINE %q", cfg.OCREngine)
	}
}
