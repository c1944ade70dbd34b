package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	appointmentrepo "github.com/qerbie/qerbie-backend/internal/appointment/repository"
	appointmentservice "github.com/qerbie/qerbie-backend/internal/appointment/service"
	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	authrepo "github.com/qerbie/qerbie-backend/internal/auth/repository"
	authservice "github.com/qerbie/qerbie-backend/internal/auth/service"
	merchantrepo "github.com/qerbie/qerbie-backend/internal/merchant/repository"
	merchantservice "github.com/qerbie/qerbie-backend/internal/merchant/service"
	"github.com/qerbie/qerbie-backend/internal/notification/consumers"
	notificationrepo "github.com/qerbie/qerbie-backend/internal/notification/repository"
	notificationservice "github.com/qerbie/qerbie-backend/internal/notification/service"
	"github.com/qerbie/qerbie-backend/internal/notification/sms"
	queuerepo "github.com/qerbie/qerbie-backend/internal/queue/repository"
	queueservice "github.com/qerbie/qerbie-backend/internal/queue/service"
	"github.com/qerbie/qerbie-backend/internal/scheduler"
	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithOptions("worker", logger.Options{
		Console:    cfg.Server.IsDevelopment(),
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log.Info().Msg("starting Qerbie worker")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Sweeps publish status changes like the API does
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "qerbie-worker", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	merchantRepo := merchantrepo.NewMerchantRepository(db)
	merchantService := merchantservice.NewMerchantService(db, merchantRepo, merchantrepo.NewMemberRepository(db), publisher, log)
	queueService := queueservice.NewQueueService(db, queuerepo.NewQueueRepository(db), queuerepo.NewTicketRepository(db), publisher, log)
	appointmentService := appointmentservice.NewAppointmentService(db, appointmentrepo.NewSlotRepository(db), appointmentrepo.NewRequestRepository(db), publisher, log)
	authService := authservice.NewAuthService(authrepo.NewUserRepository(db), authrepo.NewSessionRepository(db), jwt.NewManager(&cfg.JWT), log)

	// A nil sender records notifications as skipped
	var sender notificationservice.Sender
	if s := sms.NewTwilioSender(&cfg.Twilio); s != nil {
		sender = s
	} else {
		log.Warn().Msg("twilio is not configured, SMS notifications will be skipped")
	}
	notifier := notificationservice.NewNotifier(db, notificationrepo.NewNotificationRepository(db), merchantRepo, sender, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start notification consumer
	startConsumer := func() error {
		c, err := consumers.NewEventConsumer(rmq, notifier, log)
		if err != nil {
			return err
		}
		return c.Start(ctx)
	}
	if err := startConsumer(); err != nil {
		log.Fatal().Err(err).Msg("failed to start notification consumer")
	}
	go rmq.WatchConnection(ctx, startConsumer)

	// Start scheduler
	sched := scheduler.New(cfg.Scheduler, cfg.Queue, merchantService, queueService, appointmentService, authService, log)
	if err := sched.Register(); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule jobs")
	}
	sched.Start()

	// Health endpoint for the orchestrator
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Recoverer(log))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "worker",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")

	// Cancel context to stop consumers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
