// Package tenant carries the merchant a request is scoped to.
// Merchants are the tenants of the system; every merchant-owned row is filtered by merchant_id.
package tenant

import (
	"context"
	"errors"
	"time"
	_ "time/tzdata"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	merchantKey    contextKey = "merchant"
	permissionsKey contextKey = "permissions"
)

var (
	// ErrNoMerchantInContext is returned when merchant context is missing
	ErrNoMerchantInContext = errors.New("no merchant in context")
)

// Merchant is the slice of merchant data that request handling needs
type Merchant struct {
	ID           string
	Slug         string
	Name         string
	BusinessType string
	Timezone     string
}

// Location returns the merchant's time zone, UTC when unset or unknown
func (m Merchant) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WithMerchant adds the merchant to the context.
// Called by the membership middleware and after QR token resolution.
func WithMerchant(ctx context.Context, m Merchant) context.Context {
	return context.WithValue(ctx, merchantKey, m)
}

// WithPermissions adds the effective permissions of the current member
func WithPermissions(ctx context.Context, perms []string) context.Context {
	return context.WithValue(ctx, permissionsKey, perms)
}

// FromContext returns the merchant stored in ctx
func FromContext(ctx context.Context) (Merchant, error) {
	m, ok := ctx.Value(merchantKey).(Merchant)
	if !ok || m.ID == "" {
		return Merchant{}, ErrNoMerchantInContext
	}
	return m, nil
}

// MerchantID extracts merchant ID from context
// Returns ErrNoMerchantInContext if merchant is not found
func MerchantID(ctx context.Context) (string, error) {
	m, err := FromContext(ctx)
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// Permissions returns the member permissions stored in ctx (nil for anonymous customers)
func Permissions(ctx context.Context) []string {
	perms, _ := ctx.Value(permissionsKey).([]string)
	return perms
}

// MustMerchantID extracts merchant ID from context and panics if not found
// Use only in cases where missing merchant is a programming error
func MustMerchantID(ctx context.Context) string {
	id, err := MerchantID(ctx)
	if err != nil {
		panic("merchant ID not found in context")
	}
	return id
}
