package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haliard/binsight/internal/application"
	appscans "github.com/haliard/binsight/internal/application/scans"
	"github.com/haliard/binsight/internal/config"
	domain "github.com/haliard/binsight/internal/domain/scans"
	aiopenai "github.com/haliard/binsight/internal/infra/ai/openai"
	"github.com/haliard/binsight/internal/infra/analyzer/sandbox"
	mysqlp "github.com/haliard/binsight/internal/infra/db/mysql"
	postgresp "github.com/haliard/binsight/internal/infra/db/postgres"
	"github.com/haliard/binsight/internal/infra/httpserver"
	minioStore "github.com/haliard/binsight/internal/infra/storage"
	"github.com/haliard/binsight/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql default, postgres opsional)
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "", "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		repo = mysqlp.NewScanRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		repo = postgresp.NewScanRepository(db)
	default:
		log.Fatalf("unknown database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init analyzer + classifier collaborators
	runner := sandbox.NewRunner(cfg.Analyzer.StaticImage, cfg.Analyzer.DynamicImage)
	classifier := aiopenai.NewClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	// init service
	svc := &appscans.Service{
		Repo:         repo,
		Static:       runner,
		Dynamic:      runner,
		Classifier:   classifier,
		Artifacts:    store,
		Clock:        application.SystemClock{},
		Bands:        cfg.ThreatBands,
		PhaseTimeout: cfg.PhaseTimeout(),
	}

	// init router + middleware
	limiter := middleware.NewRateLimiter(20, 5)
	health := middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	})
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.APIKeyAuth(cfg.APIKeys))
	mux.Use(limiter.Middleware)
	mux.Mount("/", httpserver.NewRouter(svc, health))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
