package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupMenu(t *testing.T) {
	products := []Product{
		{ID: "1", Name: "Espresso", Category: "Coffee", PriceCents: 600},
		{ID: "2", Name: "Latte", Category: "Coffee", PriceCents: 900},
		{ID: "3", Name: "Croissant", Category: "Bakery", PriceCents: 1200},
		{ID: "4", Name: "Water", Category: "", PriceCents: 400},
	}

	menu := GroupMenu(products)

	assert.Len(t, menu, 3)
	assert.Equal(t, "Coffee", menu[0].Name)
	assert.Equal(t, []string{"Espresso", "Latte"}, []string{menu[0].Products[0].Name, menu[0].Products[1].Name})
	assert.Equal(t, "Bakery", menu[1].Name)
	assert.Equal(t, "", menu[2].Name)
	assert.Equal(t, 400, menu[2].Products[0].PriceCents)
}

func TestGroupMenu_Empty(t *testing.T) {
	menu := GroupMenu(nil)
	assert.NotNil(t, menu)
	assert.Empty(t, menu)
}
