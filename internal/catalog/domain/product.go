package domain

import "time"

// Product is an item of a merchant's catalog
type Product struct {
	ID          string    `db:"id" json:"id"`
	MerchantID  string    `db:"merchant_id" json:"merchant_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	PriceCents  int       `db:"price_cents" json:"price_cents"`
	ImageURL    *string   `db:"image_url" json:"image_url,omitempty"`
	IsAvailable bool      `db:"is_available" json:"is_available"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MenuCategory is one section of the public menu
type MenuCategory struct {
	Name     string        `json:"name"`
	Products []MenuProduct `json:"products"`
}

// MenuProduct is the customer-facing view of a product
type MenuProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PriceCents  int     `json:"price_cents"`
	ImageURL    *string `json:"image_url,omitempty"`
}

// GroupMenu groups products into categories. Input order is kept both for
// categories (first appearance) and for products inside each category.
func GroupMenu(products []Product) []MenuCategory {
	out := []MenuCategory{}
	index := map[string]int{}
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, MenuCategory{Name: p.Category, Products: []MenuProduct{}})
		}
		out[i].Products = append(out[i].Products, MenuProduct{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			ImageURL:    p.ImageURL,
		})
	}
	return out
}
