package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAPIAuth(t *testing.T) {
	e := echo.New()
	h := APIAuth("s3cret")(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for _, tc := range []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{"s3cret", http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/refunds", nil)
		if tc.token != "" {
			req.Header.Set(APIKeyHeader, tc.token)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		assert.Equal(t, tc.want, rec.Code, "token %q", tc.token)
	}
}

func TestAPIAuthWithoutConfiguredKeyRejectsAll(t *testing.T) {
	e := echo.New()
	h := APIAuth("")(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(APIKeyHeader, "anything")
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemoryEventDeduperExpires(t *testing.T) {
	d := newMemoryEventDeduper(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := d.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "evt_1"))
	seen, _ = d.Seen(ctx, "evt_1")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = d.Seen(ctx, "evt_1")
	assert.False(t, seen)
}

func TestNewEventDeduperWithoutRedisUsesMemory(t *testing.T) {
	d, err := NewEventDeduper("", "", 0, 0)
	require.NoError(t, err)
	assert.IsType(t, &memoryEventDeduper{}, d)
}

func TestWebhookEventDedup(t *testing.T) {
	e := echo.New()
	d := newMemoryEventDeduper(time.Hour)
	calls := 0
	status := http.StatusInternalServerError
	h := WebhookEventDedup(d, zap.NewNop())(func(c echo.Context) error {
		calls++
		return c.NoContent(status)
	})

	send := func(eventID string) int {
		req := httptest.NewRequest(http.MethodPost, "/payment/razorpay/webhook", nil)
		if eventID != "" {
			req.Header.Set(EventIDHeader, eventID)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		return rec.Code
	}

	// A failed delivery is not remembered.
	assert.Equal(t, http.StatusInternalServerError, send("evt_1"))
	status = http.StatusOK
	assert.Equal(t, http.StatusOK, send("evt_1"))
	assert.Equal(t, 2, calls)

	// Redelivery of a handled event never reaches the handler.
	assert.Equal(t, http.StatusOK, send("evt_1"))
	assert.Equal(t, 2, calls)

	// Deliveries without an event id always pass through.
	send("")
	send("")
	assert.Equal(t, 4, calls)
}
