package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-budget-api/internal/application/budget"
	"github.com/go-budget-api/internal/application/otp"
	"github.com/go-budget-api/internal/application/session"
	"github.com/go-budget-api/internal/application/user"
	"github.com/go-budget-api/internal/config"
	"github.com/go-budget-api/internal/infrastructure/dynamo"
	"github.com/go-budget-api/internal/infrastructure/localdb"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
	s3infra "github.com/go-budget-api/internal/infrastructure/s3"
	"github.com/go-budget-api/internal/infrastructure/sheets"
	"github.com/go-budget-api/internal/infrastructure/smtp"
	"github.com/go-budget-api/internal/jobs"
	transporthttp "github.com/go-budget-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	setupLogger(cfg)

	ctx := context.Background()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreDriver, err)
	}
	store := rowstore.New(backend)

	repos, err := sheets.Open(ctx, store, cfg.Sheets)
	if err != nil {
		log.Fatalf("open collections: %v", err)
	}

	userSvc := user.NewService(user.ServiceDeps{UserRepo: repos.Users})
	sessionSvc := session.NewService(session.ServiceDeps{
		SessionRepo: repos.Sessions,
		TTL:         cfg.SessionTTL,
	})
	otpSvc := otp.NewService(otp.ServiceDeps{
		CodeRepo:       repos.Verifications,
		SessionService: sessionSvc,
		UserService:    userSvc,
		Mailer:         smtp.NewMailer(cfg),
		TTL:            cfg.OTPTTL,
		Cooldown:       cfg.OTPCooldown,
	})
	budgetSvc := budget.NewService(budget.ServiceDeps{
		BudgetRepo: repos.Budgets,
		BillRepo:   repos.Bills,
	})

	// S3 snapshots (optional, needs a bucket).
	jobDeps := jobs.Deps{
		OTP:               otpSvc,
		Sessions:          sessionSvc,
		OTPCollection:     cfg.Sheets.OTP,
		SessionCollection: cfg.Sheets.Sessions,
		Store:             store,
		SweepSchedule:     cfg.SweepSchedule,
		SnapshotSchedule:  cfg.SnapshotSchedule,
	}
	if cfg.S3BucketName != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			slog.Warn("snapshots disabled", "error", err)
		} else {
			jobDeps.Uploader = s3infra.NewStore(s3Client, cfg.S3BucketName)
		}
	}
	runner, err := jobs.NewRunner(jobDeps)
	if err != nil {
		log.Fatalf("schedule jobs: %v", err)
	}
	runner.Start()

	router, limiter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		OTP:      otpSvc,
		Sessions: sessionSvc,
		Budget:   budgetSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s, jobs=%d)", cfg.AppPort, cfg.AppEnv, cfg.StoreDriver, runner.Jobs())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	limiter.Close()

	select {
	case <-runner.Stop().Done():
	case <-shutdownCtx.Done():
		log.Println("jobs still running at shutdown deadline")
	}
	if err := store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
	log.Println("Server stopped")
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Production() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openBackend(ctx context.Context, cfg *config.Config) (rowstore.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverLevelDB:
		return localdb.Open(cfg.LevelDBPath)
	case config.DriverDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates the rows table if it doesn't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoRowTable)
		return dynamo.NewRowRepo(client, cfg.DynamoRowTable), nil
	default:
		return rowstore.NewMemoryBackend(), nil
	}
}
