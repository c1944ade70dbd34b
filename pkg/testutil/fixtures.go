package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// placeholderHash is a well-formed hash for fixture users that never log in
const placeholderHash = "pbkdf2_sha256$1000$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2U"

// UserFixture represents test user data
type UserFixture struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// MerchantFixture represents test merchant data
type MerchantFixture struct {
	ID           string
	Name         string
	Slug         string
	BusinessType string
	OwnerID      string
	CreatedAt    time.Time
}

// ProductFixture represents test product data
type ProductFixture struct {
	ID          string
	MerchantID  string
	Name        string
	Category    string
	PriceCents  int
	IsAvailable bool
	SortOrder   int
}

// QueueFixture represents test queue data
type QueueFixture struct {
	ID                string
	MerchantID        string
	Name              string
	AvgServiceMinutes int
	IsOpen            bool
	QRToken           string
}

// TableFixture represents test table data
type TableFixture struct {
	ID         string
	MerchantID string
	Label      string
	QRToken    string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// token returns a unique 22 character token
func (f *FixtureFactory) token() string {
	return fmt.Sprintf("tok%019d", f.nextSeq())
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) *UserFixture {
	seq := f.nextSeq()

	user := &UserFixture{
		ID:           uuid.New().String(),
		Email:        fmt.Sprintf("user%d-%s@test.qerbie.app", seq, uuid.New().String()[:8]),
		PasswordHash: placeholderHash,
		FullName:     fmt.Sprintf("Test User %d", seq),
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(user)
	}

	return user
}

// WithEmail sets the user's email
func WithEmail(email string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Email = email
	}
}

// WithPasswordHash sets the user's stored password hash
func WithPasswordHash(hash string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.PasswordHash = hash
	}
}

// Insert writes the user row
func (u *UserFixture) Insert(ctx context.Context, db sqlx.ExecerContext) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, full_name) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.FullName)
	return err
}

// Merchant creates a merchant fixture with defaults
func (f *FixtureFactory) Merchant(opts ...func(*MerchantFixture)) *MerchantFixture {
	seq := f.nextSeq()

	m := &MerchantFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test Merchant %d", seq),
		Slug:         fmt.Sprintf("test-merchant-%d-%s", seq, uuid.New().String()[:8]),
		BusinessType: "restaurant",
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// WithBusinessType sets the merchant vertical
func WithBusinessType(businessType string) func(*MerchantFixture) {
	return func(m *MerchantFixture) {
		m.BusinessType = businessType
	}
}

// Insert writes the merchant row and, when OwnerID is set, the owner membership
func (m *MerchantFixture) Insert(ctx context.Context, db sqlx.ExecerContext) error {
	if _, err := db.ExecContext(ctx,
		`INSERT INTO merchants (id, name, slug, business_type) VALUES ($1, $2, $3, $4)`,
		m.ID, m.Name, m.Slug, m.BusinessType); err != nil {
		return err
	}
	if m.OwnerID == "" {
		return nil
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO merchant_members (id, merchant_id, user_id, role, permissions) VALUES ($1, $2, $3, 'owner', $4)`,
		uuid.New().String(), m.ID, m.OwnerID, pq.StringArray{})
	return err
}

// Product creates a product fixture for the merchant
func (f *FixtureFactory) Product(merchantID string, opts ...func(*ProductFixture)) *ProductFixture {
	seq := f.nextSeq()

	p := &ProductFixture{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		Name:        fmt.Sprintf("Product %d", seq),
		Category:    "Mains",
		PriceCents:  1000 + seq,
		IsAvailable: true,
		SortOrder:   seq,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithPrice sets the product price in cents
func WithPrice(cents int) func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.PriceCents = cents
	}
}

// Unavailable marks the product as not orderable
func Unavailable() func(*ProductFixture) {
	return func(p *ProductFixture) {
		p.IsAvailable = false
	}
}

// Insert writes the product row
func (p *ProductFixture) Insert(ctx context.Context, db sqlx.ExecerContext) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO products (id, merchant_id, name, category, price_cents, is_available, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.MerchantID, p.Name, p.Category, p.PriceCents, p.IsAvailable, p.SortOrder)
	return err
}

// Queue creates an open queue fixture for the merchant
func (f *FixtureFactory) Queue(merchantID string, opts ...func(*QueueFixture)) *QueueFixture {
	q := &QueueFixture{
		ID:                uuid.New().String(),
		MerchantID:        merchantID,
		Name:              fmt.Sprintf("Queue %d", f.nextSeq()),
		AvgServiceMinutes: 5,
		IsOpen:            true,
		QRToken:           f.token(),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Closed marks the queue as closed
func Closed() func(*QueueFixture) {
	return func(q *QueueFixture) {
		q.IsOpen = false
	}
}

// Insert writes the queue row
func (q *QueueFixture) Insert(ctx context.Context, db sqlx.ExecerContext) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO merchant_queues (id, merchant_id, name, avg_service_minutes, is_open, qr_token)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		q.ID, q.MerchantID, q.Name, q.AvgServiceMinutes, q.IsOpen, q.QRToken)
	return err
}

// Table creates a table fixture for the merchant
func (f *FixtureFactory) Table(merchantID string) *TableFixture {
	return &TableFixture{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		Label:      fmt.Sprintf("T%d", f.nextSeq()),
		QRToken:    f.token(),
	}
}

// Insert writes the table row
func (tf *TableFixture) Insert(ctx context.Context, db sqlx.ExecerContext) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO merchant_tables (id, merchant_id, label, qr_token) VALUES ($1, $2, $3, $4)`,
		tf.ID, tf.MerchantID, tf.Label, tf.QRToken)
	return err
}
