package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/repository"
	"paysync/internal/testutil"
)

func TestExpireReservations(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	lapsed := testutil.SeedOrder(t, db, testutil.WithReservedUntil(now.Add(-time.Minute)))
	lapsedFailed := testutil.SeedOrder(t, db,
		testutil.WithReservedUntil(now.Add(-time.Minute)),
		testutil.WithStatus(models.OrderStatusReserved, models.PaymentStatusFailed))
	paid := testutil.SeedOrder(t, db,
		testutil.WithReservedUntil(now.Add(-time.Minute)),
		testutil.WithStatus(models.OrderStatusReserved, models.PaymentStatusReceived))
	live := testutil.SeedOrder(t, db, testutil.WithReservedUntil(now.Add(time.Minute)))

	s := New(repository.NewStore(db), Schedule{}, zap.NewNop())
	s.now = func() time.Time { return now }
	s.expireReservations()

	assert.Equal(t, models.OrderStatusExpired, testutil.ReloadOrder(t, db, lapsed.ID).Status)
	assert.Equal(t, models.OrderStatusExpired, testutil.ReloadOrder(t, db, lapsedFailed.ID).Status)
	assert.Equal(t, models.OrderStatusReserved, testutil.ReloadOrder(t, db, paid.ID).Status)
	assert.Equal(t, models.OrderStatusReserved, testutil.ReloadOrder(t, db, live.ID).Status)
}

func TestPurgeExpiredMarkers(t *testing.T) {
	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, err := store.Markers.Acquire("payment.captured:pay_old", "payment.captured", time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Markers.Acquire("payment.captured:pay_new", "payment.captured", time.Hour, now)
	require.NoError(t, err)
	require.True(t, ok)

	s := New(store, Schedule{}, zap.NewNop())
	s.now = func() time.Time { return now }
	s.purgeExpiredMarkers()

	var keys []string
	require.NoError(t, db.Model(&models.IdempotencyMarker{}).Pluck("key", &keys).Error)
	assert.Equal(t, []string{"payment.captured:pay_new"}, keys)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(repository.NewStore(testutil.NewDB(t)), Schedule{MarkerPurge: "not a spec"}, zap.NewNop())
	assert.Error(t, s.Start())
}

func TestStartAndStop(t *testing.T) {
	s := New(repository.NewStore(testutil.NewDB(t)), Schedule{
		MarkerPurge:       DefaultMarkerPurgeSpec,
		ReservationExpiry: DefaultReservationExpirySpec,
	}, zap.NewNop())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
