package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appointmenthandler "github.com/qerbie/qerbie-backend/internal/appointment/handler"
	appointmentrepo "github.com/qerbie/qerbie-backend/internal/appointment/repository"
	appointmentservice "github.com/qerbie/qerbie-backend/internal/appointment/service"
	authhandler "github.com/qerbie/qerbie-backend/internal/auth/handler"
	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	authmw "github.com/qerbie/qerbie-backend/internal/auth/middleware"
	authrepo "github.com/qerbie/qerbie-backend/internal/auth/repository"
	authservice "github.com/qerbie/qerbie-backend/internal/auth/service"
	cataloghandler "github.com/qerbie/qerbie-backend/internal/catalog/handler"
	catalogrepo "github.com/qerbie/qerbie-backend/internal/catalog/repository"
	catalogservice "github.com/qerbie/qerbie-backend/internal/catalog/service"
	"github.com/qerbie/qerbie-backend/internal/customer"
	merchanthandler "github.com/qerbie/qerbie-backend/internal/merchant/handler"
	merchantrepo "github.com/qerbie/qerbie-backend/internal/merchant/repository"
	merchantservice "github.com/qerbie/qerbie-backend/internal/merchant/service"
	notificationhandler "github.com/qerbie/qerbie-backend/internal/notification/handler"
	notificationrepo "github.com/qerbie/qerbie-backend/internal/notification/repository"
	notificationservice "github.com/qerbie/qerbie-backend/internal/notification/service"
	orderhandler "github.com/qerbie/qerbie-backend/internal/order/handler"
	orderrepo "github.com/qerbie/qerbie-backend/internal/order/repository"
	orderservice "github.com/qerbie/qerbie-backend/internal/order/service"
	qrhandler "github.com/qerbie/qerbie-backend/internal/qr/handler"
	qrrepo "github.com/qerbie/qerbie-backend/internal/qr/repository"
	qrservice "github.com/qerbie/qerbie-backend/internal/qr/service"
	queuehandler "github.com/qerbie/qerbie-backend/internal/queue/handler"
	queuerepo "github.com/qerbie/qerbie-backend/internal/queue/repository"
	queueservice "github.com/qerbie/qerbie-backend/internal/queue/service"
	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation("api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithOptions("api", logger.Options{
		Console:    cfg.Server.IsDevelopment(),
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log.Info().Msg("starting Qerbie API")

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

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "qerbie-api", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rmq.WatchConnection(ctx, func() error {
		return rmq.DeclareTopic(messaging.ExchangeEvents)
	})

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	sessionRepo := authrepo.NewSessionRepository(db)
	merchantRepo := merchantrepo.NewMerchantRepository(db)
	memberRepo := merchantrepo.NewMemberRepository(db)
	productRepo := catalogrepo.NewProductRepository(db)
	qrRepo := qrrepo.NewQRRepository(db)
	queueRepo := queuerepo.NewQueueRepository(db)
	ticketRepo := queuerepo.NewTicketRepository(db)
	slotRepo := appointmentrepo.NewSlotRepository(db)
	requestRepo := appointmentrepo.NewRequestRepository(db)
	tableRepo := orderrepo.NewTableRepository(db)
	orderRepo := orderrepo.NewOrderRepository(db)
	notificationRepo := notificationrepo.NewNotificationRepository(db)

	// Services
	jwtManager := jwt.NewManager(&cfg.JWT)
	authService := authservice.NewAuthService(userRepo, sessionRepo, jwtManager, log)
	merchantService := merchantservice.NewMerchantService(db, merchantRepo, memberRepo, publisher, log)
	catalogService := catalogservice.NewCatalogService(db, productRepo, log)
	qrService := qrservice.NewQRService(db, qrRepo, log)
	queueService := queueservice.NewQueueService(db, queueRepo, ticketRepo, publisher, log)
	appointmentService := appointmentservice.NewAppointmentService(db, slotRepo, requestRepo, publisher, log)
	orderService := orderservice.NewOrderService(db, tableRepo, orderRepo, productRepo, publisher, log)
	// The API only reads the notification log; delivery happens in the worker
	notifier := notificationservice.NewNotifier(db, notificationRepo, merchantRepo, nil, log)

	base := cfg.Server.PublicBaseURL
	handler := newRouter(routerDeps{
		allowedOrigins: cfg.Server.AllowedOrigins,
		health: func(w http.ResponseWriter, r *http.Request) {
			httputil.JSON(w, http.StatusOK, map[string]interface{}{
				"status":   "healthy",
				"service":  "api",
				"database": db.Health(r.Context()),
				"rabbitmq": rmq.Health(),
			})
		},
		authenticate: authmw.Authenticate(jwtManager, log),
		members:      merchantService,
		resolver:     qrService,
		session: customer.Options{
			CookieName: cfg.Session.CookieName,
			MaxAge:     cfg.Session.MaxAge,
			Secure:     cfg.Session.Secure,
		},

		auth: authhandler.NewAuthHandler(authService, authhandler.Options{
			PublicBaseURL: base,
			SecureCookies: cfg.Session.Secure,
			RefreshExpiry: cfg.JWT.RefreshExpiry,
		}, log),
		merchants:    merchanthandler.NewMerchantHandler(merchantService, base, log),
		catalog:      cataloghandler.NewCatalogHandler(catalogService, base, log),
		qr:           qrhandler.NewQRHandler(qrService, base, log),
		queues:       queuehandler.NewQueueHandler(queueService, base, log),
		appointments: appointmenthandler.NewAppointmentHandler(appointmentService, base, log),
		orders:       orderhandler.NewOrderHandler(orderService, base, log),
		notification: notificationhandler.NewNotificationHandler(notifier, log),

		logger: log,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
