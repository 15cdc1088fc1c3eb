package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/yemeli/swiftride/pkg/models"
)

// Sentinel errors the service layer maps onto the API error taxonomy
var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletInactive      = errors.New("wallet inactive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyTerminal     = errors.New("transaction already in a terminal state")
)

// TransferResult carries both completed legs of a two-party transfer
type TransferResult struct {
	Reference string
	Debit     *models.WalletTransaction
	Credit    *models.WalletTransaction
}

// RepositoryInterface defines the interface for wallet repository
// operations. Balance mutations happen only inside Transfer, Confirm
// and Refund, each of which is a single database transaction.
type RepositoryInterface interface {
	// GetOrCreateByUserID returns the user's wallet, creating an empty
	// active one on first touch
	GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)

	// GetByUserID returns the user's wallet or ErrWalletNotFound
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)

	// Transfer atomically debits the source user's wallet and credits
	// the destination user's wallet, appending one completed ledger
	// entry to each under a shared reference. Both wallet rows are
	// locked in lexicographic id order. On any failure nothing is
	// applied.
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64, txType models.TransactionType, meta models.TransactionMetadata) (*TransferResult, error)

	// CreatePending appends a pending ledger entry; no balance change
	CreatePending(ctx context.Context, txn *models.WalletTransaction) error

	// Confirm resolves a pending gateway transaction by external
	// reference. Success applies the balance change (a withdrawal that
	// would overdraw is marked failed instead); failure just marks the
	// entry failed. A reference already in a terminal state returns
	// ErrAlreadyTerminal and changes nothing.
	Confirm(ctx context.Context, externalRef string, success bool) (*models.WalletTransaction, error)

	// Refund reverses a completed entry: appends a completed refund
	// entry in the opposite direction and applies the balance change
	Refund(ctx context.Context, externalRef, reason string) (*models.WalletTransaction, error)

	GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, error)
}
