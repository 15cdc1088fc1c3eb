package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/pkg/common"
	"github.com/yemeli/swiftride/pkg/config"
	"github.com/yemeli/swiftride/pkg/eventbus"
	"github.com/yemeli/swiftride/pkg/logger"
	"github.com/yemeli/swiftride/pkg/metrics"
	"github.com/yemeli/swiftride/pkg/models"
)

// Gateway initiates money movement with an external payment provider.
// Calls are fire-and-forget: the provider reports the outcome later
// through a webhook, which lands in HandleConfirmation.
type Gateway interface {
	Collect(ctx context.Context, userID uuid.UUID, amount float64, currency, externalRef string) error
	Payout(ctx context.Context, userID uuid.UUID, amount float64, currency, externalRef string) error
}

// Service handles wallet business logic. Deposits and withdrawals are
// pending-first: the ledger entry exists before the gateway is asked to
// move money, and the balance only changes when the gateway confirms.
type Service struct {
	repo    RepositoryInterface
	gateway Gateway
	bus     eventbus.Bus
	cfg     config.PaymentsConfig
}

// NewService creates a new wallet service
func NewService(repo RepositoryInterface, gateway Gateway, bus eventbus.Bus, cfg config.PaymentsConfig) *Service {
	return &Service{repo: repo, gateway: gateway, bus: bus, cfg: cfg}
}

// GetWallet returns the user's wallet, creating it on first access
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}
	return wallet, nil
}

// Deposit starts a gateway collection into the user's wallet. The
// returned transaction is pending until the gateway webhook confirms it.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount float64, gateway string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, common.NewBadRequestError("deposit amount must be positive", nil)
	}

	wallet, err := s.repo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, common.NewInternalError("failed to load wallet", err)
	}
	if !wallet.IsActive {
		return nil, common.NewForbiddenError("wallet is inactive").WithCode("WALLET_INACTIVE")
	}

	externalRef := "dep_" + uuid.NewString()
	txn := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Reference:   "txn_" + uuid.NewString(),
		ExternalRef: &externalRef,
		Type:        models.TransactionTypeDeposit,
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Currency:    wallet.Currency,
		Metadata: models.TransactionMetadata{
			Deposit: &models.DepositMetadata{Gateway: gateway, GatewayMode: "gateway"},
		},
	}
	if err := s.repo.CreatePending(ctx, txn); err != nil {
		return nil, common.NewInternalError("failed to record deposit", err)
	}

	if err := s.gateway.Collect(ctx, userID, amount, wallet.Currency, externalRef); err != nil {
		return s.gatewayFallback(ctx, txn, err)
	}
	return txn, nil
}

// Withdraw starts a gateway payout from the user's wallet. The balance
// is checked again at confirmation time; the initiation check only
// rejects obviously hopeless requests early.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, amount float64, gateway string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, common.NewBadRequestError("withdrawal amount must be positive", nil)
	}

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load wallet")
	}
	if !wallet.IsActive {
		return nil, common.NewForbiddenError("wallet is inactive").WithCode("WALLET_INACTIVE")
	}
	if wallet.Balance < amount {
		return nil, common.NewUnprocessableError("insufficient balance", nil).WithCode("INSUFFICIENT_BALANCE")
	}

	externalRef := "wdr_" + uuid.NewString()
	txn := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Reference:   "txn_" + uuid.NewString(),
		ExternalRef: &externalRef,
		Type:        models.TransactionTypeWithdrawal,
		Direction:   models.DirectionDebit,
		Amount:      amount,
		Currency:    wallet.Currency,
		Metadata: models.TransactionMetadata{
			Withdrawal: &models.WithdrawalMetadata{Gateway: gateway, GatewayMode: "gateway"},
		},
	}
	if err := s.repo.CreatePending(ctx, txn); err != nil {
		return nil, common.NewInternalError("failed to record withdrawal", err)
	}

	if err := s.gateway.Payout(ctx, userID, amount, wallet.Currency, externalRef); err != nil {
		return s.gatewayFallback(ctx, txn, err)
	}
	return txn, nil
}

// gatewayFallback handles a gateway initiation failure. With fallback
// completion enabled the entry is confirmed locally; otherwise it stays
// pending for a later retry or manual resolution.
func (s *Service) gatewayFallback(ctx context.Context, txn *models.WalletTransaction, cause error) (*models.WalletTransaction, error) {
	logger.Warn("payment gateway initiation failed",
		zap.String("external_ref", deref(txn.ExternalRef)),
		zap.Bool("fallback_complete", s.cfg.FallbackComplete),
		zap.Error(cause),
	)
	if !s.cfg.FallbackComplete {
		return txn, nil
	}

	confirmed, err := s.repo.Confirm(ctx, *txn.ExternalRef, true)
	if err != nil {
		return nil, common.NewInternalError("failed to complete fallback transaction", err)
	}
	return confirmed, nil
}

// Transfer moves funds between two users' wallets
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, common.NewBadRequestError("transfer amount must be positive", nil)
	}
	if fromUserID == toUserID {
		return nil, common.NewBadRequestError("cannot transfer to your own wallet", nil)
	}

	// Destination is created lazily so a first-time recipient can be paid
	dest, err := s.repo.GetOrCreateByUserID(ctx, toUserID)
	if err != nil {
		return nil, common.NewInternalError("failed to load destination wallet", err)
	}

	result, err := s.repo.Transfer(ctx, fromUserID, toUserID, amount, models.TransactionTypeTransfer,
		models.TransactionMetadata{
			Transfer: &models.TransferMetadata{CounterpartyWalletID: dest.ID},
		},
	)
	if err != nil {
		return nil, s.mapRepoError(err, "transfer failed")
	}

	metrics.WalletTransfers.Inc()
	s.publishTransfer(ctx, fromUserID, toUserID, result)
	return result, nil
}

// PayRideFare settles a completed ride from the rider's wallet to the
// driver's wallet and returns the ledger reference
func (s *Service) PayRideFare(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error) {
	return s.rideTransfer(ctx, riderID, driverID, rideID, amount, models.TransactionTypeRidePayment)
}

// ChargeCancellationFee compensates the driver when the rider cancels an
// already-accepted ride
func (s *Service) ChargeCancellationFee(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (string, error) {
	return s.rideTransfer(ctx, riderID, driverID, rideID, amount, models.TransactionTypeRidePayment)
}

func (s *Service) rideTransfer(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64, txType models.TransactionType) (string, error) {
	// The driver may never have touched their wallet before their first fare
	if _, err := s.repo.GetOrCreateByUserID(ctx, driverID); err != nil {
		return "", fmt.Errorf("failed to prepare driver wallet: %w", err)
	}

	result, err := s.repo.Transfer(ctx, riderID, driverID, amount, txType,
		models.TransactionMetadata{
			RidePayment: &models.RidePaymentMetadata{RideID: rideID},
		},
	)
	if err != nil {
		return "", err
	}

	metrics.WalletTransfers.Inc()
	s.publishTransfer(ctx, riderID, driverID, result)
	return result.Reference, nil
}

// CollectRideFare starts a gateway collection of a ride fare billed to
// the rider, credited to the driver's wallet when the gateway confirms.
// The external reference is derived from the ride, so replayed
// completion events reuse the existing entry instead of double-billing.
func (s *Service) CollectRideFare(ctx context.Context, riderID, driverID, rideID uuid.UUID, amount float64) (*models.WalletTransaction, error) {
	externalRef := "ride_" + rideID.String()
	if existing, err := s.repo.GetTransactionByExternalRef(ctx, externalRef); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrTransactionNotFound) {
		return nil, common.NewInternalError("failed to check ride collection", err)
	}

	driverWallet, err := s.repo.GetOrCreateByUserID(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to prepare driver wallet", err)
	}

	txn := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    driverWallet.ID,
		Reference:   "txn_" + uuid.NewString(),
		ExternalRef: &externalRef,
		Type:        models.TransactionTypeRidePayment,
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Currency:    driverWallet.Currency,
		Metadata: models.TransactionMetadata{
			RidePayment: &models.RidePaymentMetadata{RideID: rideID},
		},
	}
	if err := s.repo.CreatePending(ctx, txn); err != nil {
		return nil, common.NewInternalError("failed to record ride collection", err)
	}

	if err := s.gateway.Collect(ctx, riderID, amount, driverWallet.Currency, externalRef); err != nil {
		return s.gatewayFallback(ctx, txn, err)
	}
	return txn, nil
}

// HandleConfirmation applies a gateway webhook outcome to the pending
// transaction it references. A confirmation for an already-terminal
// transaction is a logged no-op, which makes webhook replays harmless.
func (s *Service) HandleConfirmation(ctx context.Context, externalRef string, success bool) (*models.WalletTransaction, error) {
	txn, err := s.repo.Confirm(ctx, externalRef, success)
	if err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			metrics.WebhookDuplicates.Inc()
			logger.Info("ignoring confirmation for terminal transaction",
				zap.String("external_ref", externalRef),
				zap.String("status", string(txn.Status)),
			)
			return txn, nil
		}
		return nil, s.mapRepoError(err, "failed to apply confirmation")
	}

	logger.Info("gateway transaction confirmed",
		zap.String("external_ref", externalRef),
		zap.String("status", string(txn.Status)),
		zap.Float64("amount", txn.Amount),
	)
	return txn, nil
}

// Refund reverses a completed gateway transaction
func (s *Service) Refund(ctx context.Context, externalRef, reason string) (*models.WalletTransaction, error) {
	refund, err := s.repo.Refund(ctx, externalRef, reason)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to refund transaction")
	}
	return refund, nil
}

// ListTransactions returns the user's ledger, newest first
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, error) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, s.mapRepoError(err, "failed to load wallet")
	}
	txns, err := s.repo.ListTransactions(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, common.NewInternalError("failed to list transactions", err)
	}
	return txns, nil
}

func (s *Service) publishTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, result *TransferResult) {
	events := []struct {
		userID uuid.UUID
		txn    *models.WalletTransaction
		typ    string
	}{
		{fromUserID, result.Debit, eventbus.EventWalletDebited},
		{toUserID, result.Credit, eventbus.EventWalletCredited},
	}
	for _, e := range events {
		err := s.bus.Publish(ctx, eventbus.TopicWalletEvents, e.typ, eventbus.WalletTransactionData{
			WalletID:  e.txn.WalletID,
			UserID:    e.userID,
			Reference: e.txn.Reference,
			Type:      string(e.txn.Type),
			Direction: string(e.txn.Direction),
			Amount:    e.txn.Amount,
		})
		if err != nil {
			logger.Warn("failed to publish wallet event",
				zap.String("reference", e.txn.Reference),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) mapRepoError(err error, message string) error {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return common.NewNotFoundError("wallet not found").WithCode("WALLET_NOT_FOUND")
	case errors.Is(err, ErrWalletInactive):
		return common.NewForbiddenError("wallet is inactive").WithCode("WALLET_INACTIVE")
	case errors.Is(err, ErrInsufficientBalance):
		return common.NewUnprocessableError("insufficient balance", nil).WithCode("INSUFFICIENT_BALANCE")
	case errors.Is(err, ErrTransactionNotFound):
		return common.NewNotFoundError("transaction not found").WithCode("TRANSACTION_NOT_FOUND")
	default:
		return common.NewInternalError(message, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
