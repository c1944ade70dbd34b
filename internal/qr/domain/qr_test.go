package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.Len(t, tok, TokenLength)
		assert.True(t, ValidFormat(tok), tok)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("AbCdEfGhIjKlMnOpQrSt_-"))
	assert.False(t, ValidFormat("too-short"))
	assert.False(t, ValidFormat("AbCdEfGhIjKlMnOpQrSt_-x"))
	assert.False(t, ValidFormat("AbCdEfGhIjKlMnOpQrSt+/"))
	assert.False(t, ValidFormat(""))
}

func TestVerticalTable(t *testing.T) {
	cases := map[string]string{
		"barbershop": "barbershop_qr_tokens",
		"pet_shop":   "pet_qr_tokens",
		"salon":      "beauty_qr_tokens",
	}
	for businessType, table := range cases {
		got, ok := VerticalTable(businessType)
		assert.True(t, ok, businessType)
		assert.Equal(t, table, got)
	}

	_, ok := VerticalTable("restaurant")
	assert.False(t, ok)
	_, ok = VerticalTable("gym")
	assert.False(t, ok)
}
