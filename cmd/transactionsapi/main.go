package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/config"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/handler/httpapi"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/infrastructure"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/infrastructure/events"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/infrastructure/repository"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/integrations/viacep"
	"github.com/vithxrlorencetti/TransactionsAPI/internal/usecase"
)

const tokenTTL = 24 * time.Hour

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// Config
	cfg, err := config.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Database
	db, err := sql.Open("mysql", cfg.DBDSN)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := waitForDB(context.Background(), db); err != nil {
		log.WithError(err).Fatal("database unreachable")
	}
	if err := infrastructure.RunMigrations(db, log); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Repositories
	repo := repository.NewMariaDBRepository(db, log)

	// Events
	var publisher domain.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.WithField("brokers", cfg.KafkaBrokers).Info("kafka publisher enabled")
	}

	// UseCases
	issuer := httpapi.NewJWTIssuer(cfg.JWTSecret, tokenTTL)
	addresses := viacep.NewClient(cfg.ViaCepURL, log)
	ledgerUC := usecase.NewLedgerUseCase(repo, repo, repo, publisher, log)
	accountUC := usecase.NewAccountUseCase(repo, repo, addresses, issuer, log)

	// Handlers
	h := httpapi.NewHandler(ledgerUC, accountUC, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(issuer.Middleware),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}

// waitForDB pings with exponential backoff; the database container often
// comes up after the service does.
func waitForDB(ctx context.Context, db *sql.DB) error {
	backoff := retry.WithMaxRetries(10, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
