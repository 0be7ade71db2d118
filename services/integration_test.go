//go:build integration

package services

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/minhvu2810/homestay_booking/models"
	"github.com/minhvu2810/homestay_booking/payments"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("TEST_DB_HOST", "localhost"),
		getEnv("TEST_DB_PORT", "5434"),
		getEnv("TEST_DB_USER", "postgres"),
		getEnv("TEST_DB_PASSWORD", "postgres"),
		getEnv("TEST_DB_NAME", "homestay_test_db"),
	)

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("failed to connect to test database: %v", err)
	}

	if err := testDB.AutoMigrate(
		&models.User{},
		&models.Accommodation{},
		&models.Room{},
		&models.RoomHold{},
		&models.Booking{},
		&models.PaymentTransaction{},
		&models.CancellationRecord{},
	); err != nil {
		log.Fatalf("failed to auto-migrate test database: %v", err)
	}

	os.Exit(m.Run())
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cleanTables() {
	testDB.Exec("DELETE FROM cancellation_records")
	testDB.Exec("DELETE FROM payment_transactions")
	testDB.Exec("DELETE FROM bookings")
	testDB.Exec("DELETE FROM room_holds")
	testDB.Exec("DELETE FROM rooms")
	testDB.Exec("DELETE FROM accommodations")
	testDB.Exec("DELETE FROM users")
}

func testGateway() *payments.Gateway {
	return &payments.Gateway{
		PayURL:     "https://sandbox.example.com/pay",
		TmnCode:    "DEMO01",
		HashSecret: "TESTSECRET123",
		ReturnURL:  "https://app.example.com/payments/return",
	}
}

func createTestRoom(t *testing.T, pricePerNight float64) (*models.User, *models.Room) {
	t.Helper()
	guest := &models.User{FullName: "Guest " + uuid.NewString()[:8], Email: uuid.NewString() + "@test.local", Password: "x", Role: "guest"}
	require.NoError(t, testDB.Create(guest).Error)

	host := &models.User{FullName: "Host " + uuid.NewString()[:8], Email: uuid.NewString() + "@test.local", Password: "x", Role: "host"}
	require.NoError(t, testDB.Create(host).Error)

	acc := &models.Accommodation{HostID: host.ID, Name: "Test Homestay"}
	require.NoError(t, testDB.Create(acc).Error)

	room := &models.Room{AccommodationID: acc.ID, Name: "Room 101", PricePerNight: &pricePerNight}
	require.NoError(t, testDB.Create(room).Error)
	return guest, room
}

// signedSuccess builds a callback the gateway would send for a successful
// payment on the given transaction.
func signedSuccess(gw *payments.Gateway, txn *models.PaymentTransaction) map[string]string {
	params := map[string]string{
		"vnp_TmnCode":       gw.TmnCode,
		"vnp_TxnRef":        txn.TransactionCode,
		"vnp_Amount":        strconv.FormatInt(int64(math.Round(txn.Amount))*100, 10),
		"vnp_OrderInfo":     txn.OrderInfo,
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14721088",
		"vnp_BankCode":      "NCB",
	}
	params["vnp_SecureHash"] = payments.SignParams(params, gw.HashSecret)
	return params
}

// 20 users race for the same room and date range; exactly one hold wins.
func TestConcurrentHoldAcquisition(t *testing.T) {
	cleanTables()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	totalUsers := 20
	var wg sync.WaitGroup
	won := make(chan *models.RoomHold, totalUsers)

	wg.Add(totalUsers)
	for i := 0; i < totalUsers; i++ {
		go func() {
			defer wg.Done()
			hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkOut, 15)
			if err == nil {
				won <- hold
			}
		}()
	}
	wg.Wait()
	close(won)

	winners := 0
	for range won {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one concurrent caller should win the hold")

	var count int64
	testDB.Model(&models.RoomHold{}).Where("room_id = ?", room.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

// Re-delivering a successful callback must not change state again.
func TestReconcileIsIdempotent(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	booking, err := CreateBooking(testDB, guest.ID, room.ID, checkIn, checkOut, "")
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingDeposit, booking.Status)

	_, txn, err := InitiateForBooking(testDB, gw, booking.ID, guest.ID, false, "127.0.0.1")
	require.NoError(t, err)

	params := signedSuccess(gw, txn)

	first, err := ReconcileCallback(testDB, gw, params)
	require.NoError(t, err)
	assert.Equal(t, RspConfirmed, first.RspCode)
	assert.True(t, first.Applied)
	assert.Equal(t, StatusFullyPaid, first.BookingStatus)

	second, err := ReconcileCallback(testDB, gw, params)
	require.NoError(t, err)
	assert.Equal(t, RspAlreadyConfirmed, second.RspCode)
	assert.False(t, second.Applied)

	var reloaded models.Booking
	require.NoError(t, testDB.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, StatusFullyPaid, reloaded.Status)

	var successCount int64
	testDB.Model(&models.PaymentTransaction{}).
		Where("booking_id = ? AND status = ?", booking.ID, TxnStatusSuccess).
		Count(&successCount)
	assert.EqualValues(t, 1, successCount)
}

// The deferred flow creates no booking until the gateway confirms, then
// materializes exactly one and consumes the hold.
func TestDeferredBookingMaterializesOnConfirm(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 3)

	hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkOut, 15)
	require.NoError(t, err)

	_, txn, err := InitiateDeferred(testDB, gw, guest.ID, uuid.Nil, time.Time{}, time.Time{}, hold.Token, "127.0.0.1")
	require.NoError(t, err)
	assert.Nil(t, txn.BookingID)
	assert.Equal(t, float64(1500000), txn.Amount) // 3 nights at 500000

	var bookingCount int64
	testDB.Model(&models.Booking{}).Count(&bookingCount)
	require.Zero(t, bookingCount, "no booking may exist before the gateway confirms")

	out, err := ReconcileCallback(testDB, gw, signedSuccess(gw, txn))
	require.NoError(t, err)
	assert.Equal(t, RspConfirmed, out.RspCode)
	require.NotNil(t, out.BookingID)
	assert.Equal(t, StatusFullyPaid, out.BookingStatus)

	var booking models.Booking
	require.NoError(t, testDB.First(&booking, "id = ?", out.BookingID).Error)
	assert.Equal(t, guest.ID, booking.GuestID)
	assert.Equal(t, room.ID, booking.RoomID)

	var holdCount int64
	testDB.Model(&models.RoomHold{}).Where("token = ?", hold.Token).Count(&holdCount)
	assert.Zero(t, holdCount, "the hold must be consumed on confirmation")
}

// A failed callback releases the backing hold and leaves no booking behind.
func TestDeferredFailureReleasesHold(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkOut, 15)
	require.NoError(t, err)

	_, txn, err := InitiateDeferred(testDB, gw, guest.ID, uuid.Nil, time.Time{}, time.Time{}, hold.Token, "127.0.0.1")
	require.NoError(t, err)

	params := signedSuccess(gw, txn)
	params["vnp_ResponseCode"] = "24" // customer cancelled at the gateway
	params["vnp_SecureHash"] = payments.SignParams(stripSignature(params), gw.HashSecret)

	out, err := ReconcileCallback(testDB, gw, params)
	require.NoError(t, err)
	assert.Equal(t, RspConfirmed, out.RspCode)
	assert.Equal(t, TxnStatusFailed, out.TxnStatus)

	var bookingCount int64
	testDB.Model(&models.Booking{}).Count(&bookingCount)
	assert.Zero(t, bookingCount)

	var holdCount int64
	testDB.Model(&models.RoomHold{}).Where("token = ?", hold.Token).Count(&holdCount)
	assert.Zero(t, holdCount, "a failed payment must free the hold")
}

func stripSignature(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k == "vnp_SecureHash" {
			continue
		}
		out[k] = v
	}
	return out
}

func createTestGuest(t *testing.T) *models.User {
	t.Helper()
	guest := &models.User{FullName: "Guest " + uuid.NewString()[:8], Email: uuid.NewString() + "@test.local", Password: "x", Role: "guest"}
	require.NoError(t, testDB.Create(guest).Error)
	return guest
}

func payInFull(t *testing.T, gw *payments.Gateway, bookingID, guestID uuid.UUID) {
	t.Helper()
	_, txn, err := InitiateForBooking(testDB, gw, bookingID, guestID, false, "127.0.0.1")
	require.NoError(t, err)
	_, err = ReconcileCallback(testDB, gw, signedSuccess(gw, txn))
	require.NoError(t, err)
}

// Renewal moves the expiry forward and never backwards.
func TestRenewHoldNeverShrinksExpiry(t *testing.T) {
	cleanTables()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkOut, 30)
	require.NoError(t, err)

	require.True(t, RenewHold(testDB, hold.Token, 60))
	var extended models.RoomHold
	require.NoError(t, testDB.First(&extended, "token = ?", hold.Token).Error)
	assert.True(t, extended.ExpiresAt.After(hold.ExpiresAt), "a longer renewal must push the expiry out")

	require.True(t, RenewHold(testDB, hold.Token, 5))
	var after models.RoomHold
	require.NoError(t, testDB.First(&after, "token = ?", hold.Token).Error)
	assert.False(t, after.ExpiresAt.Before(extended.ExpiresAt), "a short renewal must not pull the expiry backwards")
}

// A hold that already expired is gone for renewal purposes.
func TestRenewHoldAfterExpiry(t *testing.T) {
	cleanTables()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkOut, 15)
	require.NoError(t, err)
	require.NoError(t, testDB.Model(&models.RoomHold{}).
		Where("token = ?", hold.Token).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	assert.False(t, RenewHold(testDB, hold.Token, 15))
	assert.False(t, RenewHold(testDB, "no-such-token", 15))
}

func TestReleaseHoldIsIdempotent(t *testing.T) {
	cleanTables()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	hold, err := AcquireHold(testDB, guest.ID, room.ID, checkIn, checkIn.AddDate(0, 0, 2), 15)
	require.NoError(t, err)

	assert.True(t, ReleaseHold(testDB, hold.Token))
	assert.False(t, ReleaseHold(testDB, hold.Token), "second release finds nothing to remove")
}

// Purge only reclaims holds past expiry plus grace; live ones are untouched.
func TestPurgeExpiredHoldsKeepsLiveOnes(t *testing.T) {
	cleanTables()
	guest, room := createTestRoom(t, 500000)

	base := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	live, err := AcquireHold(testDB, guest.ID, room.ID, base, base.AddDate(0, 0, 2), 30)
	require.NoError(t, err)
	stale, err := AcquireHold(testDB, guest.ID, room.ID, base.AddDate(0, 0, 3), base.AddDate(0, 0, 5), 30)
	require.NoError(t, err)
	require.NoError(t, testDB.Model(&models.RoomHold{}).
		Where("token = ?", stale.Token).
		Update("expires_at", time.Now().Add(-10*time.Minute)).Error)

	assert.EqualValues(t, 0, PurgeExpiredHolds(testDB, 30), "grace keeps the recently expired hold")
	assert.EqualValues(t, 1, PurgeExpiredHolds(testDB, 0))

	var count int64
	testDB.Model(&models.RoomHold{}).Count(&count)
	assert.EqualValues(t, 1, count)
	require.NoError(t, testDB.First(&models.RoomHold{}, "token = ?", live.Token).Error)
}

// A settled cancellation can never be escalated: the gateway is unreachable
// here, so any attempt to call it would fail loudly.
func TestEscalateRefundOnlyFromPending(t *testing.T) {
	cleanTables()
	gw := testGateway()
	gw.APIURL = "http://127.0.0.1:1"
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().Add(30 * time.Hour)
	booking, err := CreateBooking(testDB, guest.ID, room.ID, checkIn, checkIn.AddDate(0, 0, 2), "")
	require.NoError(t, err)
	payInFull(t, gw, booking.ID, guest.ID)

	record, err := RequestCancellation(testDB, gw, booking.ID, guest.ID, false, "change of plans")
	require.NoError(t, err)
	require.Equal(t, CancelStatusRefunded, record.Status) // ledger mode settles synchronously

	_, err = EscalateRefund(testDB, gw, record.ID, "admin@test.local")
	assert.Error(t, err)

	var reloaded models.CancellationRecord
	require.NoError(t, testDB.First(&reloaded, "id = ?", record.ID).Error)
	assert.Equal(t, CancelStatusRefunded, reloaded.Status, "a terminal record is never rewritten")
}

// A gateway rejection closes the record as rejected, writes no refund
// transaction, and the record stays terminal afterwards.
func TestEscalateRefundRejectionIsTerminal(t *testing.T) {
	cleanTables()
	t.Setenv("REFUND_MODE", "gateway")
	gw := testGateway()
	gw.APIURL = "http://127.0.0.1:1" // connection refused, the gateway says no
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().Add(30 * time.Hour)
	booking, err := CreateBooking(testDB, guest.ID, room.ID, checkIn, checkIn.AddDate(0, 0, 2), "")
	require.NoError(t, err)
	payInFull(t, gw, booking.ID, guest.ID)

	record, err := RequestCancellation(testDB, gw, booking.ID, guest.ID, false, "change of plans")
	require.NoError(t, err)
	require.Equal(t, CancelStatusPending, record.Status)

	settled, err := EscalateRefund(testDB, gw, record.ID, "admin@test.local")
	require.NoError(t, err)
	assert.Equal(t, CancelStatusRejected, settled.Status)

	var refunds int64
	testDB.Model(&models.PaymentTransaction{}).
		Where("booking_id = ? AND kind = ?", booking.ID, TxnKindRefund).
		Count(&refunds)
	assert.Zero(t, refunds)

	_, err = EscalateRefund(testDB, gw, record.ID, "admin@test.local")
	assert.Error(t, err, "a rejected record cannot be escalated again")

	_, err = RejectCancellation(testDB, record.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), CancelStatusRejected, "the conflict names the state the record settled in")
}

// A direct deferred payment that confirms after someone else took the dates
// still settles the money; the booking is recorded for manual resolution
// rather than dropped.
func TestDeferredConfirmAfterRoomBooked(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)
	other := createTestGuest(t)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	_, txn, err := InitiateDeferred(testDB, gw, guest.ID, room.ID, checkIn, checkOut, "", "127.0.0.1")
	require.NoError(t, err)

	// The dates are taken while the payment session is open.
	_, err = CreateBooking(testDB, other.ID, room.ID, checkIn, checkOut, "")
	require.NoError(t, err)

	out, err := ReconcileCallback(testDB, gw, signedSuccess(gw, txn))
	require.NoError(t, err)
	assert.Equal(t, RspConfirmed, out.RspCode)
	require.NotNil(t, out.BookingID, "money moved, so the paid booking must exist")

	var paid models.Booking
	require.NoError(t, testDB.First(&paid, "id = ?", out.BookingID).Error)
	assert.Equal(t, guest.ID, paid.GuestID)
}

// A booking parked in awaiting_checkin with a balance outstanding can still
// be paid; the confirmation upgrades it to fully_paid, never backwards.
func TestAwaitingCheckinStaysCollectible(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	booking, err := CreateBooking(testDB, guest.ID, room.ID, checkIn, checkIn.AddDate(0, 0, 2), "")
	require.NoError(t, err)
	require.NoError(t, testDB.Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Update("status", StatusAwaitingCheckIn).Error)

	_, txn, err := InitiateForBooking(testDB, gw, booking.ID, guest.ID, false, "127.0.0.1")
	require.NoError(t, err)

	out, err := ReconcileCallback(testDB, gw, signedSuccess(gw, txn))
	require.NoError(t, err)
	assert.Equal(t, RspConfirmed, out.RspCode)
	assert.Equal(t, StatusFullyPaid, out.BookingStatus)
}

// Cancelling 30h out in ledger mode refunds everything synchronously.
func TestCancellationLedgerRefund(t *testing.T) {
	cleanTables()
	gw := testGateway()
	guest, room := createTestRoom(t, 500000)

	checkIn := time.Now().Add(30 * time.Hour)
	checkOut := checkIn.AddDate(0, 0, 2)

	booking, err := CreateBooking(testDB, guest.ID, room.ID, checkIn, checkOut, "")
	require.NoError(t, err)

	_, txn, err := InitiateForBooking(testDB, gw, booking.ID, guest.ID, false, "127.0.0.1")
	require.NoError(t, err)
	_, err = ReconcileCallback(testDB, gw, signedSuccess(gw, txn))
	require.NoError(t, err)

	record, err := RequestCancellation(testDB, gw, booking.ID, guest.ID, false, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, CancelStatusRefunded, record.Status)
	assert.Equal(t, booking.TotalAmount, record.RefundAmount)
	assert.Zero(t, record.PenaltyAmount)

	var reloaded models.Booking
	require.NoError(t, testDB.First(&reloaded, "id = ?", booking.ID).Error)
	assert.Equal(t, StatusCancelled, reloaded.Status)

	var refundCount int64
	testDB.Model(&models.PaymentTransaction{}).
		Where("booking_id = ? AND kind = ? AND status = ?", booking.ID, TxnKindRefund, TxnStatusSuccess).
		Count(&refundCount)
	assert.EqualValues(t, 1, refundCount)

	// A second request against the cancelled booking is rejected.
	_, err = RequestCancellation(testDB, gw, booking.ID, guest.ID, false, "again")
	assert.Error(t, err)
}
