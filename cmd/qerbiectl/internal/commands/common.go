package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/qerbie/qerbie-backend/internal/auth/repository"
	merchantdomain "github.com/qerbie/qerbie-backend/internal/merchant/domain"
	merchantrepo "github.com/qerbie/qerbie-backend/internal/merchant/repository"
	merchantservice "github.com/qerbie/qerbie-backend/internal/merchant/service"
	qrdomain "github.com/qerbie/qerbie-backend/internal/qr/domain"
	qrrepo "github.com/qerbie/qerbie-backend/internal/qr/repository"
	qrservice "github.com/qerbie/qerbie-backend/internal/qr/service"
	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
	"github.com/spf13/cobra"
)

// Migrator applies pending schema migrations
type Migrator interface {
	Migrate(ctx context.Context) ([]string, error)
}

// UserFinder looks up accounts by email
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
}

// MerchantManager creates and reads merchants
type MerchantManager interface {
	Create(ctx context.Context, ownerID string, req *merchantservice.CreateMerchantRequest) (*merchantdomain.Merchant, error)
	Get(ctx context.Context, merchantID string) (*merchantdomain.Merchant, error)
}

// QRIssuer issues and rotates QR tokens
type QRIssuer interface {
	IssueBookingToken(ctx context.Context, merchantID, businessType string, req *qrservice.IssueBookingTokenRequest) (*qrdomain.BookingToken, error)
	RotateTableToken(ctx context.Context, merchantID, tableID string) (string, error)
	RotateQueueToken(ctx context.Context, merchantID, queueID string) (string, error)
}

// Env is what a command runs against
type Env struct {
	PublicBaseURL string
	Migrator      Migrator
	Users         UserFinder
	Merchants     MerchantManager
	QR            QRIssuer

	closers []func() error
}

// Close releases the connections opened for the command
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// Connector opens an Env. Events are only needed by commands that publish them.
type Connector func(ctx context.Context, withEvents bool) (*Env, error)

// Connect loads configuration and opens the database, and RabbitMQ when withEvents is set
func Connect(ctx context.Context, withEvents bool) (*Env, error) {
	cfg, err := config.LoadWithValidation("qerbiectl")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewWithWriter(os.Stderr, "qerbiectl")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	env := &Env{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Migrator:      db,
		Users:         repository.NewUserRepository(db),
		QR:            qrservice.NewQRService(db, qrrepo.NewQRRepository(db), log),
		closers:       []func() error{db.Close},
	}

	var publisher messaging.EventPublisher = discardPublisher{}
	if withEvents {
		rmq, err := messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		env.closers = append(env.closers, rmq.Close)

		p, err := messaging.NewPublisher(rmq, messaging.ExchangeEvents, "qerbiectl", log)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		publisher = p
	}
	env.Merchants = merchantservice.NewMerchantService(db, merchantrepo.NewMerchantRepository(db), merchantrepo.NewMemberRepository(db), publisher, log)

	return env, nil
}

// discardPublisher backs read-only commands that never emit events
type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// describe renders an error with its validation details, if any
func describe(err error) error {
	var appErr *errors.AppError
	if !errors.As(err, &appErr) || len(appErr.Details) == 0 {
		return err
	}

	fields := make([]string, 0, len(appErr.Details))
	for f := range appErr.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+appErr.Details[f])
	}
	return fmt.Errorf("%s (%s)", appErr.Message, strings.Join(parts, "; "))
}

// Register adds every command group to root
func Register(root *cobra.Command, connect Connector) {
	root.AddCommand(newMigrateCommand(connect))
	root.AddCommand(newMerchantCommand(connect))
	root.AddCommand(newQRCommand(connect))
}
