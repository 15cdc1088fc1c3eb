package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemeli/swiftride/internal/wallet"
	"github.com/yemeli/swiftride/pkg/config"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/models"
)

// fakeWalletStore is a minimal in-memory wallet.RepositoryInterface
// faithful to the balance-moves-at-confirmation rule
type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	txns    []*models.WalletTransaction
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (s *fakeWalletStore) GetOrCreateByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		c := *w
		return &c, nil
	}
	w := &models.Wallet{ID: uuid.New(), UserID: userID, Currency: models.DefaultCurrency, IsActive: true}
	s.wallets[userID] = w
	c := *w
	return &c, nil
}

func (s *fakeWalletStore) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[userID]; ok {
		c := *w
		return &c, nil
	}
	return nil, wallet.ErrWalletNotFound
}

func (s *fakeWalletStore) Transfer(_ context.Context, _, _ uuid.UUID, _ float64, _ models.TransactionType, _ models.TransactionMetadata) (*wallet.TransferResult, error) {
	return nil, wallet.ErrWalletNotFound
}

func (s *fakeWalletStore) CreatePending(_ context.Context, txn *models.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn.Status = models.TransactionStatusPending
	txn.CreatedAt = time.Now().UTC()
	c := *txn
	s.txns = append(s.txns, &c)
	return nil
}

func (s *fakeWalletStore) Confirm(_ context.Context, externalRef string, success bool) (*models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.find(externalRef)
	if txn == nil {
		return nil, wallet.ErrTransactionNotFound
	}
	if txn.Status.IsTerminal() {
		c := *txn
		return &c, wallet.ErrAlreadyTerminal
	}
	now := time.Now().UTC()
	txn.Status = models.TransactionStatusFailed
	if success {
		for _, w := range s.wallets {
			if w.ID == txn.WalletID {
				if txn.Direction == models.DirectionCredit {
					w.Balance += txn.Amount
					txn.Status = models.TransactionStatusCompleted
				} else if w.Balance >= txn.Amount {
					w.Balance -= txn.Amount
					txn.Status = models.TransactionStatusCompleted
				}
			}
		}
	}
	txn.CompletedAt = &now
	c := *txn
	return &c, nil
}

func (s *fakeWalletStore) Refund(_ context.Context, externalRef, reason string) (*models.WalletTransaction, error) {
	return nil, wallet.ErrTransactionNotFound
}

func (s *fakeWalletStore) GetTransactionByExternalRef(_ context.Context, externalRef string) (*models.WalletTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn := s.find(externalRef); txn != nil {
		c := *txn
		return &c, nil
	}
	return nil, wallet.ErrTransactionNotFound
}

func (s *fakeWalletStore) ListTransactions(_ context.Context, _ uuid.UUID, _, _ int) ([]*models.WalletTransaction, error) {
	return nil, nil
}

func (s *fakeWalletStore) find(externalRef string) *models.WalletTransaction {
	for _, txn := range s.txns {
		if txn.ExternalRef != nil && *txn.ExternalRef == externalRef {
			return txn
		}
	}
	return nil
}

type noopGateway struct{}

func (noopGateway) Collect(context.Context, uuid.UUID, float64, string, string) error { return nil }
func (noopGateway) Payout(context.Context, uuid.UUID, float64, string, string) error  { return nil }

type recordingRecorder struct {
	mu    sync.Mutex
	calls []recordedPayment
}

type recordedPayment struct {
	rideID uuid.UUID
	status models.PaymentStatus
}

func (r *recordingRecorder) SetPaymentResult(_ context.Context, rideID uuid.UUID, status models.PaymentStatus, _ *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedPayment{rideID: rideID, status: status})
	return nil
}

func postWebhook(t *testing.T, h *Handler, body WebhookRequest) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookConfirmsRideFareAndRecordsResult(t *testing.T) {
	store := newFakeWalletStore()
	wallets := wallet.NewService(store, noopGateway{}, eventbus.NewMemoryBus(), config.PaymentsConfig{})
	recorder := &recordingRecorder{}
	handler := NewHandler(wallets, recorder)

	riderID, driverID, rideID := uuid.New(), uuid.New(), uuid.New()
	txn, err := wallets.CollectRideFare(context.Background(), riderID, driverID, rideID, 1150)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusPending, txn.Status)

	rec := postWebhook(t, handler, WebhookRequest{ExternalRef: *txn.ExternalRef, Status: "success"})
	assert.Equal(t, http.StatusOK, rec.Code)

	driver, err := wallets.GetWallet(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, 1150.0, driver.Balance)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, rideID, recorder.calls[0].rideID)
	assert.Equal(t, models.PaymentStatusCompleted, recorder.calls[0].status)
}

func TestWebhookFailureMarksRidePaymentFailed(t *testing.T) {
	store := newFakeWalletStore()
	wallets := wallet.NewService(store, noopGateway{}, eventbus.NewMemoryBus(), config.PaymentsConfig{})
	recorder := &recordingRecorder{}
	handler := NewHandler(wallets, recorder)

	rideID := uuid.New()
	txn, err := wallets.CollectRideFare(context.Background(), uuid.New(), uuid.New(), rideID, 900)
	require.NoError(t, err)

	rec := postWebhook(t, handler, WebhookRequest{ExternalRef: *txn.ExternalRef, Status: "failed"})
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, models.PaymentStatusFailed, recorder.calls[0].status)
}

func TestWebhookReplayIsHarmless(t *testing.T) {
	store := newFakeWalletStore()
	wallets := wallet.NewService(store, noopGateway{}, eventbus.NewMemoryBus(), config.PaymentsConfig{})
	recorder := &recordingRecorder{}
	handler := NewHandler(wallets, recorder)

	driverID := uuid.New()
	txn, err := wallets.CollectRideFare(context.Background(), uuid.New(), driverID, uuid.New(), 700)
	require.NoError(t, err)

	first := postWebhook(t, handler, WebhookRequest{ExternalRef: *txn.ExternalRef, Status: "success"})
	assert.Equal(t, http.StatusOK, first.Code)
	second := postWebhook(t, handler, WebhookRequest{ExternalRef: *txn.ExternalRef, Status: "success"})
	assert.Equal(t, http.StatusOK, second.Code)

	driver, err := wallets.GetWallet(context.Background(), driverID)
	require.NoError(t, err)
	assert.Equal(t, 700.0, driver.Balance, "replayed confirmation must not credit twice")
}

func TestWebhookUnknownReferenceIsNotFound(t *testing.T) {
	store := newFakeWalletStore()
	wallets := wallet.NewService(store, noopGateway{}, eventbus.NewMemoryBus(), config.PaymentsConfig{})
	handler := NewHandler(wallets, &recordingRecorder{})

	rec := postWebhook(t, handler, WebhookRequest{ExternalRef: "dep_missing", Status: "success"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRideCompletedEventStartsGatewayCollection(t *testing.T) {
	store := newFakeWalletStore()
	bus := eventbus.NewMemoryBus()
	wallets := wallet.NewService(store, noopGateway{}, bus, config.PaymentsConfig{})
	eventHandler := NewEventHandler(wallets)
	require.NoError(t, eventHandler.RegisterSubscriptions(context.Background(), bus))

	rideID, driverID := uuid.New(), uuid.New()
	data := eventbus.RideCompletedData{
		RideID:        rideID,
		RiderID:       uuid.New(),
		DriverID:      driverID,
		FareAmount:    1150,
		PaymentMethod: string(models.PaymentMethodMomo),
	}
	require.NoError(t, bus.Publish(context.Background(), eventbus.TopicRideCompleted, eventbus.EventRideCompleted, data))

	pending, err := store.GetTransactionByExternalRef(context.Background(), "ride_"+rideID.String())
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, pending.Status)
	assert.Equal(t, 1150.0, pending.Amount)

	// Redelivered event reuses the same entry
	require.NoError(t, bus.Publish(context.Background(), eventbus.TopicRideCompleted, eventbus.EventRideCompleted, data))
	store.mu.Lock()
	assert.Len(t, store.txns, 1)
	store.mu.Unlock()
}

func TestRideCompletedEventIgnoresWalletAndCash(t *testing.T) {
	store := newFakeWalletStore()
	bus := eventbus.NewMemoryBus()
	wallets := wallet.NewService(store, noopGateway{}, bus, config.PaymentsConfig{})
	eventHandler := NewEventHandler(wallets)
	require.NoError(t, eventHandler.RegisterSubscriptions(context.Background(), bus))

	for _, method := range []models.PaymentMethod{models.PaymentMethodWallet, models.PaymentMethodCash} {
		data := eventbus.RideCompletedData{
			RideID:        uuid.New(),
			RiderID:       uuid.New(),
			DriverID:      uuid.New(),
			FareAmount:    500,
			PaymentMethod: string(method),
		}
		require.NoError(t, bus.Publish(context.Background(), eventbus.TopicRideCompleted, eventbus.EventRideCompleted, data))
	}

	store.mu.Lock()
	assert.Empty(t, store.txns)
	store.mu.Unlock()
}
