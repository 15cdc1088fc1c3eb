package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// PaymentMethod represents payment method
type PaymentMethod string

const (
	PaymentMethodMomo        PaymentMethod = "momo"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodWallet      PaymentMethod = "wallet"
)

// DefaultCurrency is the platform currency
const DefaultCurrency = "XAF"

// Wallet represents a user's wallet
type Wallet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Balance   float64   `json:"balance" db:"balance"`
	Currency  string    `json:"currency" db:"currency"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TransactionType classifies wallet ledger entries
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeTransfer    TransactionType = "transfer"
	TransactionTypeRidePayment TransactionType = "ride_payment"
	TransactionTypeRefund      TransactionType = "refund"
)

// TransactionDirection marks an entry as a credit or a debit
type TransactionDirection string

const (
	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

// TransactionStatus represents ledger entry status
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether the transaction admits no further status change
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// DepositMetadata describes a gateway-driven deposit
type DepositMetadata struct {
	Gateway     string `json:"gateway"`
	PayerRef    string `json:"payer_ref,omitempty"`
	GatewayMode string `json:"gateway_mode,omitempty"` // "gateway" or "fallback"
}

// WithdrawalMetadata describes a gateway-driven withdrawal
type WithdrawalMetadata struct {
	Gateway     string `json:"gateway"`
	PayeeRef    string `json:"payee_ref,omitempty"`
	GatewayMode string `json:"gateway_mode,omitempty"`
}

// TransferMetadata links the two legs of a two-party transfer
type TransferMetadata struct {
	CounterpartyWalletID uuid.UUID  `json:"counterparty_wallet_id"`
	RideID               *uuid.UUID `json:"ride_id,omitempty"`
}

// RidePaymentMetadata links a ledger entry to the ride it settles
type RidePaymentMetadata struct {
	RideID uuid.UUID `json:"ride_id"`
}

// RefundMetadata records why money was returned
type RefundMetadata struct {
	RideID *uuid.UUID `json:"ride_id,omitempty"`
	Reason string     `json:"reason"`
}

// TransactionMetadata is a tagged variant: exactly one field matching the
// transaction type is set. Stored as a single JSONB column.
type TransactionMetadata struct {
	Deposit     *DepositMetadata     `json:"deposit,omitempty"`
	Withdrawal  *WithdrawalMetadata  `json:"withdrawal,omitempty"`
	Transfer    *TransferMetadata    `json:"transfer,omitempty"`
	RidePayment *RidePaymentMetadata `json:"ride_payment,omitempty"`
	Refund      *RefundMetadata      `json:"refund,omitempty"`
}

// WalletTransaction is one entry in a wallet's append-only ledger
type WalletTransaction struct {
	ID          uuid.UUID            `json:"id" db:"id"`
	WalletID    uuid.UUID            `json:"wallet_id" db:"wallet_id"`
	Reference   string               `json:"reference" db:"reference"`
	ExternalRef *string              `json:"external_ref,omitempty" db:"external_ref"`
	Type        TransactionType      `json:"type" db:"type"`
	Direction   TransactionDirection `json:"direction" db:"direction"`
	Amount      float64              `json:"amount" db:"amount"`
	Currency    string               `json:"currency" db:"currency"`
	Status      TransactionStatus    `json:"status" db:"status"`
	Metadata    TransactionMetadata  `json:"metadata" db:"metadata"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty" db:"completed_at"`
}
