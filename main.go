package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stemstr/arweave-upload/internal/auth"
	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/db"
	"github.com/stemstr/arweave-upload/internal/fetcher"
	"github.com/stemstr/arweave-upload/internal/notifier"
	"github.com/stemstr/arweave-upload/internal/service"
	blob "github.com/stemstr/arweave-upload/internal/storage/blob"
	"github.com/stemstr/arweave-upload/internal/storage/ipfs"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

var (
	commit    string
	buildDate string
)

func main() {
	configPath := flag.String("config", "", "location of config file. If none is specified config will be loaded from the environment")
	flag.Parse()

	var (
		cfg Config
		err error
	)
	if *configPath != "" {
		err = cfg.Load(*configPath)
	} else {
		err = cfg.LoadFromEnv()
	}
	if err != nil {
		log.Printf("config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Printf("logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	lg := logger.Sugar()
	lg.Infow("build info", "commit", commit, "date", buildDate, "config", *configPath)

	if err := run(cfg, lg); err != nil {
		lg.Errorw("exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, lg *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.validate(); err != nil {
		return err
	}

	serverAddress, err := chain.AddressFromKey(cfg.PrivateKey)
	if err != nil {
		return err
	}
	lg.Infow("settlement account", "address", serverAddress)

	// Persistence
	dsn := cfg.DBFile
	if cfg.DBType == db.TypePostgres {
		dsn = cfg.DatabaseURL
	}
	repo, err := db.Open(cfg.DBType, dsn)
	if err != nil {
		return fmt.Errorf("db.Open: %w", err)
	}
	defer repo.Close()

	// Object sources
	objects := fetcher.New()
	gateway, err := ipfs.New(cfg.IPFSGateway, &http.Client{Timeout: 30 * time.Minute})
	if err != nil {
		return fmt.Errorf("ipfs.New: %w", err)
	}
	objects.Register(fetcher.SchemeIPFS, gateway)

	s3, err := blob.New(ctx, blob.Config{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
	if err != nil {
		// s3:// references are optional.
		lg.Warnw("s3 source disabled", "error", err)
	} else {
		objects.Register(fetcher.SchemeS3, s3)
	}

	// Chain and storage backends
	backends, err := backend.New(backend.Config{
		PrivateKey: cfg.PrivateKey,
		BundlrURL:  cfg.BundlrURI,
		ChunkSize:  cfg.BundlrChunkSize,
		BatchSize:  cfg.BundlrBatchSize,
		CacheSize:  len(cfg.Tokens),
	})
	if err != nil {
		return fmt.Errorf("backend.New: %w", err)
	}
	defer backends.Close()

	var alerts *notifier.Notifier
	if cfg.NotifierNsec != "" {
		alerts, err = notifier.New(cfg.NotifierNsec, cfg.NotifierRelays)
		if err != nil {
			return fmt.Errorf("notifier.New: %w", err)
		}
		lg.Infow("operator alerts enabled", "npub", alerts.Npub())
	}

	svc, err := service.New(
		service.Config{
			MinGasFee:      new(big.Int).Mul(big.NewInt(cfg.MinGasFeeGwei), big.NewInt(1_000_000_000)),
			StrictGasCheck: cfg.StrictGasCheck,
			VerifyTimeout:  time.Duration(cfg.VerifyTimeoutSeconds) * time.Second,
			SpoolDir:       cfg.SpoolDir,
		},
		repo,
		auth.New(repo, chain.Recoverer{}),
		tokens.New(cfg.Tokens),
		backends,
		objects,
		alerts,
		lg.Named("service"),
	)
	if err != nil {
		return fmt.Errorf("service.New: %w", err)
	}

	h := &handlers{
		svc: svc,
		log: lg.Named("http"),
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: newRouter(h),
	}

	errc := make(chan error, 1)
	go func() {
		lg.Infow("api listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	lg.Infow("shutting down, waiting for settlements in progress")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warnw("http shutdown", "error", err)
	}
	svc.Wait()

	return nil
}

func newRouter(h *handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metricsMiddleware)

	r.Post("/getQuote", h.handleGetQuote)
	r.Get("/getStatus", h.handleGetStatus)
	r.Get("/getLink", h.handleGetLink)
	r.Get("/getHistory", h.handleGetHistory)
	r.Post("/upload", h.handleUpload)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
