package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocaleFor(t *testing.T) {
	br := "+5511999990000"
	pt := "+351912345678"
	us := "+14155550100"

	assert.Equal(t, "pt", LocaleFor(&br))
	assert.Equal(t, "pt", LocaleFor(&pt))
	assert.Equal(t, "en", LocaleFor(&us))
	assert.Equal(t, "en", LocaleFor(nil))
}

func TestFormatWhen(t *testing.T) {
	at := time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, "09/03 14:30", FormatWhen(at, "America/Sao_Paulo", "pt"))
	assert.Equal(t, "Mar 9, 17:30", FormatWhen(at, "Nowhere/Unknown", "en"))
	assert.Equal(t, "Mar 9, 17:30", FormatWhen(at, "", "en"))
}

func TestRender(t *testing.T) {
	body := Render("en", MessageTicketCalled, map[string]string{"merchant": "Barber", "number": "12"})
	assert.Equal(t, "Barber: ticket #12 is being called. Please come to the counter.", body)

	body = Render("pt", MessageOrderReady, map[string]string{"merchant": "Cafe"})
	assert.Equal(t, "Cafe: seu pedido está pronto.", body)
}

func TestFail_TruncatesError(t *testing.T) {
	n := &Notification{Status: StatusPending}
	n.Fail(errors.New(strings.Repeat("x", 900)))

	assert.Equal(t, StatusFailed, n.Status)
	assert.Len(t, *n.Error, 500)
}
