package common

import (
	"bsm/src/db"
	"bsm/src/lib"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockdb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	mock.MatchExpectationsInOrder(false)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: mockdb,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	return mock
}

// newStripeStub points the shared client at a local server so no test ever
// talks to the real API.
func newStripeStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	sc := stripe.NewClient("sk_test_123", stripe.WithBackends(&stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	}))
	lib.NewStripeClient(sc)
	t.Cleanup(srv.Close)
	return srv
}

func pendingBookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "client_id", "professional_id", "service_id", "total", "currency", "status", "scheduled_at", "location"}).
		AddRow(1, 10, 2, 3, 120.00, "usd", "pending", time.Now().Add(48*time.Hour), "12 Rue Example, Paris")
}

func TestChargeBookingNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := ChargeBooking(context.Background(), 999, "pm_123", "")
	assert.ErrorIs(t, err, ErrBookingNotFound)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestChargeBookingAlreadySettled(t *testing.T) {
	mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "client_id", "professional_id", "service_id", "total", "status"}).
		AddRow(1, 10, 2, 3, 120.00, "confirmed")
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

func TestChargeBookingPayoutAccountMissing(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.ErrorIs(t, err, ErrPayoutAccountMissing)
}

func TestChargeBookingInactivePayoutAccount(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "professional_id", "stripe_account_id", "status"}).
			AddRow(5, 2, "acct_123", "pending"))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.ErrorIs(t, err, ErrPayoutAccountMissing)
}

func TestChargeBookingSucceeds(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "")
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "professional_id", "stripe_account_id", "status"}).
			AddRow(5, 2, "acct_123", "active"))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price"}).AddRow(3, 120.00))
	mock.ExpectQuery(`SELECT (.+) FROM "settings"`).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var gotAmount, gotFee, gotDestination string
	newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotAmount = r.PostForm.Get("amount")
		gotFee = r.PostForm.Get("application_fee_amount")
		gotDestination = r.PostForm.Get("transfer_data[destination]")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded","client_secret":"pi_123_secret","amount":12000}`))
	})

	result, err := ChargeBooking(context.Background(), 1, "pm_123", "idem-1")
	assert.Nil(t, err)
	assert.Equal(t, "pi_123", result.IntentID)
	assert.Equal(t, stripe.PaymentIntentStatusSucceeded, result.Status)

	// $120.00 at the default 10% platform rate
	assert.Equal(t, "12000", gotAmount)
	assert.Equal(t, "1200", gotFee)
	assert.Equal(t, "acct_123", gotDestination)
}

func TestChargeBookingConcurrentModification(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "")
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "professional_id", "stripe_account_id", "status"}).
			AddRow(5, 2, "acct_123", "active"))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price"}).AddRow(3, 120.00))
	mock.ExpectQuery(`SELECT (.+) FROM "settings"`).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_124","object":"payment_intent","status":"succeeded","client_secret":"pi_124_secret"}`))
	})

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestChargeBookingGatewayDown(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "")
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "professional_id", "stripe_account_id", "status"}).
			AddRow(5, 2, "acct_123", "active"))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price"}).AddRow(3, 120.00))
	mock.ExpectQuery(`SELECT (.+) FROM "settings"`).
		WillReturnError(gorm.ErrRecordNotFound)

	newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"api_error","message":"service down"}}`))
	})

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestChargeBookingCardDeclined(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "")
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(pendingBookingRows())
	mock.ExpectQuery(`SELECT (.+) FROM "professionals"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(2, "approved"))
	mock.ExpectQuery(`SELECT (.+) FROM "payout_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "professional_id", "stripe_account_id", "status"}).
			AddRow(5, 2, "acct_123", "active"))
	mock.ExpectQuery(`SELECT (.+) FROM "services"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price"}).AddRow(3, 120.00))
	mock.ExpectQuery(`SELECT (.+) FROM "settings"`).
		WillReturnError(gorm.ErrRecordNotFound)

	newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := ChargeBooking(context.Background(), 1, "pm_123", "")
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, ErrGatewayUnavailable))
	var stripeErr *stripe.Error
	assert.True(t, errors.As(err, &stripeErr))
	assert.Equal(t, stripe.ErrorTypeCard, stripeErr.Type)
}

func TestCancelBookingInvalidTransition(t *testing.T) {
	mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "client_id", "professional_id", "status"}).
		AddRow(1, 10, 2, "pending_payment")
	mock.ExpectQuery(`SELECT (.+) FROM "bookings"`).WillReturnRows(rows)

	err := CancelBooking(1, "changed my mind")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExpireStaleBookings(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT "id" FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7).AddRow(9))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var notified []uint
	restore := dispatchNotification
	dispatchNotification = func(bookingId uint, event string) {
		assert.Equal(t, "booking.canceled", event)
		notified = append(notified, bookingId)
	}
	defer func() { dispatchNotification = restore }()

	n, err := ExpireStaleBookings(24 * time.Hour)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []uint{7, 9}, notified)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestExpireStaleBookingsSkipsChargedBooking(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(`SELECT "id" FROM "bookings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "bookings"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	restore := dispatchNotification
	dispatchNotification = func(bookingId uint, event string) {
		t.Errorf("unexpected notification for booking %d", bookingId)
	}
	defer func() { dispatchNotification = restore }()

	n, err := ExpireStaleBookings(24 * time.Hour)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), n)
}
