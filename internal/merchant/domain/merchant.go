package domain

import (
	"time"

	"github.com/lib/pq"
)

// Business types
const (
	BusinessRestaurant = "restaurant"
	BusinessBarbershop = "barbershop"
	BusinessSalon      = "salon"
	BusinessPetShop    = "pet_shop"
	BusinessGym        = "gym"
)

// BusinessTypes lists every supported vertical
var BusinessTypes = []string{BusinessRestaurant, BusinessBarbershop, BusinessSalon, BusinessPetShop, BusinessGym}

// IsValidBusinessType reports whether t is a supported vertical
func IsValidBusinessType(t string) bool {
	for _, bt := range BusinessTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// Merchant is a tenant of the platform
type Merchant struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Slug         string    `db:"slug" json:"slug"`
	BusinessType string    `db:"business_type" json:"business_type"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Timezone     string    `db:"timezone" json:"timezone"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MerchantWithRole is a merchant as seen by one of its members
type MerchantWithRole struct {
	Merchant
	Role string `db:"role" json:"role"`
}

// Member links a user to a merchant with a role and extra permissions
type Member struct {
	ID          string         `db:"id" json:"id"`
	MerchantID  string         `db:"merchant_id" json:"merchant_id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Role        string         `db:"role" json:"role"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
	Email       string         `db:"email" json:"email"`
	FullName    string         `db:"full_name" json:"full_name"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Membership is what request handling needs to scope a member to a merchant
type Membership struct {
	Merchant    Merchant
	Role        string
	Permissions []string
}
