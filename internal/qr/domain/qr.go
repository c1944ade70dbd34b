// Package domain holds QR token kinds and the random token format shared by
// tables, queues and booking links.
package domain

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"time"

	merchantdomain "github.com/qerbie/qerbie-backend/internal/merchant/domain"
)

// Kinds of place a QR token can point at
const (
	KindTable   = "table"
	KindQueue   = "queue"
	KindBooking = "booking"
)

// TokenLength is the length of an encoded token: 16 random bytes in unpadded base64url
const TokenLength = 22

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]{22}$`)

// verticalTables maps business types that take bookings by QR to their token table
var verticalTables = map[string]string{
	merchantdomain.BusinessBarbershop: "barbershop_qr_tokens",
	merchantdomain.BusinessPetShop:    "pet_qr_tokens",
	merchantdomain.BusinessSalon:      "beauty_qr_tokens",
}

// NewToken returns a fresh URL-safe token
func NewToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidFormat reports whether s looks like a token; it does not mean the token exists
func ValidFormat(s string) bool {
	return tokenRe.MatchString(s)
}

// VerticalTable returns the booking token table of a business type
func VerticalTable(businessType string) (string, bool) {
	t, ok := verticalTables[businessType]
	return t, ok
}

// VerticalTables returns every business type with a booking token table, in resolution order
func VerticalTables() [][2]string {
	return [][2]string{
		{merchantdomain.BusinessBarbershop, verticalTables[merchantdomain.BusinessBarbershop]},
		{merchantdomain.BusinessPetShop, verticalTables[merchantdomain.BusinessPetShop]},
		{merchantdomain.BusinessSalon, verticalTables[merchantdomain.BusinessSalon]},
	}
}

// MerchantRef is the public face of the merchant behind a token
type MerchantRef struct {
	ID           string `db:"merchant_id" json:"-"`
	Name         string `db:"merchant_name" json:"name"`
	Slug         string `db:"merchant_slug" json:"slug"`
	BusinessType string `db:"merchant_business_type" json:"business_type"`
	Timezone     string `db:"merchant_timezone" json:"-"`
}

// Target is the table, queue or booking link a token points at
type Target struct {
	ID    string `db:"target_id" json:"id"`
	Label string `db:"target_label" json:"label"`
}

// Resolution is what a scanned token resolves to
type Resolution struct {
	Merchant MerchantRef `json:"merchant"`
	Kind     string      `json:"kind"`
	Target   Target      `json:"target"`
}

// BookingToken is a booking QR code of a barbershop, pet shop or salon
type BookingToken struct {
	ID         string     `db:"id" json:"id"`
	MerchantID string     `db:"merchant_id" json:"merchant_id"`
	Token      string     `db:"token" json:"token"`
	Label      string     `db:"label" json:"label"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}
