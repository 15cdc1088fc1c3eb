package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yemeli/swiftride/pkg/models"
)

const walletColumns = `id, user_id, balance, currency, is_active, created_at, updated_at`

const txnColumns = `
	id, wallet_id, reference, external_ref, type, direction,
	amount, currency, status, metadata, created_at, completed_at
`

// Repository handles database operations for wallets and their ledgers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new wallet repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetOrCreateByUserID returns the user's wallet, creating an empty
// active one on first touch
func (r *Repository) GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `
		INSERT INTO wallets (id, user_id, balance, currency, is_active, created_at, updated_at)
		VALUES ($1, $2, 0, $3, TRUE, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET updated_at = wallets.updated_at
		RETURNING ` + walletColumns

	wallet, err := scanWallet(r.db.QueryRow(ctx, query, uuid.New(), userID, models.DefaultCurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create wallet: %w", err)
	}
	return wallet, nil
}

// GetByUserID returns the user's wallet or ErrWalletNotFound
func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

	wallet, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

// Transfer atomically moves amount from one user's wallet to another's.
// Both wallet rows are locked in a single SELECT ... FOR UPDATE ordered
// by wallet id, so two concurrent transfers touching the same pair
// always lock in the same order and cannot deadlock.
func (r *Repository) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64, txType models.TransactionType, meta models.TransactionMetadata) (*TransferResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("transfer amount must be positive, got %.2f", amount)
	}
	if fromUserID == toUserID {
		return nil, fmt.Errorf("cannot transfer to the same wallet")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`
	rows, err := tx.Query(ctx, lockQuery, []uuid.UUID{fromUserID, toUserID})
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", err)
	}

	var source, dest *models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		switch w.UserID {
		case fromUserID:
			source = w
		case toUserID:
			dest = w
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wallets: %w", err)
	}
	if source == nil || dest == nil {
		return nil, ErrWalletNotFound
	}
	if !source.IsActive {
		return nil, ErrWalletInactive
	}
	if source.Balance < amount {
		return nil, ErrInsufficientBalance
	}

	updateQuery := `UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, updateQuery, source.ID, -amount); err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}
	if _, err := tx.Exec(ctx, updateQuery, dest.ID, amount); err != nil {
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	now := time.Now().UTC()
	reference := "trf_" + uuid.NewString()

	debit := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    source.ID,
		Reference:   reference,
		Type:        txType,
		Direction:   models.DirectionDebit,
		Amount:      amount,
		Currency:    source.Currency,
		Status:      models.TransactionStatusCompleted,
		Metadata:    meta,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	credit := &models.WalletTransaction{
		ID:          uuid.New(),
		WalletID:    dest.ID,
		Reference:   reference,
		Type:        txType,
		Direction:   models.DirectionCredit,
		Amount:      amount,
		Currency:    dest.Currency,
		Status:      models.TransactionStatusCompleted,
		Metadata:    meta,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	for _, txn := range []*models.WalletTransaction{debit, credit} {
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return &TransferResult{Reference: reference, Debit: debit, Credit: credit}, nil
}

// CreatePending appends a pending ledger entry without touching the balance
func (r *Repository) CreatePending(ctx context.Context, txn *models.WalletTransaction) error {
	txn.Status = models.TransactionStatusPending
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if err := insertTransaction(ctx, r.db, txn); err != nil {
		return err
	}
	return nil
}

// Confirm resolves a pending gateway transaction identified by its
// external reference. The balance changes here, not at initiation: a
// deposit credits on success, a withdrawal debits on success but only
// if the funds are still there, otherwise the entry is marked failed.
// Replays against a terminal entry return ErrAlreadyTerminal.
func (r *Repository) Confirm(ctx context.Context, externalRef string, success bool) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + txnColumns + ` FROM wallet_transactions WHERE external_ref = $1 FOR UPDATE`
	txn, err := scanTransaction(tx.QueryRow(ctx, query, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if txn.Status.IsTerminal() {
		return txn, ErrAlreadyTerminal
	}

	now := time.Now().UTC()
	status := models.TransactionStatusFailed

	if success {
		switch txn.Direction {
		case models.DirectionCredit:
			credit := `UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1`
			if _, err := tx.Exec(ctx, credit, txn.WalletID, txn.Amount); err != nil {
				return nil, fmt.Errorf("failed to credit wallet: %w", err)
			}
			status = models.TransactionStatusCompleted
		case models.DirectionDebit:
			debit := `
				UPDATE wallets SET balance = balance - $2, updated_at = NOW()
				WHERE id = $1 AND balance >= $2
			`
			tag, err := tx.Exec(ctx, debit, txn.WalletID, txn.Amount)
			if err != nil {
				return nil, fmt.Errorf("failed to debit wallet: %w", err)
			}
			// Funds spent between initiation and confirmation: the
			// withdrawal fails rather than overdrawing the wallet
			if tag.RowsAffected() > 0 {
				status = models.TransactionStatusCompleted
			}
		}
	}

	update := `
		UPDATE wallet_transactions
		SET status = $2, completed_at = $3
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, txn.ID, status, now); err != nil {
		return nil, fmt.Errorf("failed to finalize transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit confirm: %w", err)
	}

	txn.Status = status
	txn.CompletedAt = &now
	return txn, nil
}

// Refund reverses a completed entry: a new completed entry in the
// opposite direction under a fresh reference, with the balance change
// applied in the same transaction
func (r *Repository) Refund(ctx context.Context, externalRef, reason string) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin refund: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + txnColumns + ` FROM wallet_transactions WHERE external_ref = $1 FOR UPDATE`
	original, err := scanTransaction(tx.QueryRow(ctx, query, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if original.Status != models.TransactionStatusCompleted {
		return nil, fmt.Errorf("only completed transactions can be refunded, got %s", original.Status)
	}

	direction := models.DirectionDebit
	delta := -original.Amount
	if original.Direction == models.DirectionDebit {
		direction = models.DirectionCredit
		delta = original.Amount
	}

	update := `UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, update, original.WalletID, delta); err != nil {
		return nil, fmt.Errorf("failed to adjust wallet: %w", err)
	}

	now := time.Now().UTC()
	refund := &models.WalletTransaction{
		ID:        uuid.New(),
		WalletID:  original.WalletID,
		Reference: "rfd_" + uuid.NewString(),
		Type:      models.TransactionTypeRefund,
		Direction: direction,
		Amount:    original.Amount,
		Currency:  original.Currency,
		Status:    models.TransactionStatusCompleted,
		Metadata: models.TransactionMetadata{
			Refund: &models.RefundMetadata{Reason: reason},
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := insertTransaction(ctx, tx, refund); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	return refund, nil
}

// GetTransactionByExternalRef looks up a ledger entry by gateway reference
func (r *Repository) GetTransactionByExternalRef(ctx context.Context, externalRef string) (*models.WalletTransaction, error) {
	query := `SELECT ` + txnColumns + ` FROM wallet_transactions WHERE external_ref = $1`

	txn, err := scanTransaction(r.db.QueryRow(ctx, query, externalRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns a wallet's ledger, newest first
func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, error) {
	query := `SELECT ` + txnColumns + `
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.WalletTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txns, nil
}

// execer covers both the pool and an open transaction so ledger
// inserts can run in either
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertTransaction(ctx context.Context, db execer, txn *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			id, wallet_id, reference, external_ref, type, direction,
			amount, currency, status, metadata, created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := db.Exec(ctx, query,
		txn.ID,
		txn.WalletID,
		txn.Reference,
		txn.ExternalRef,
		txn.Type,
		txn.Direction,
		txn.Amount,
		txn.Currency,
		txn.Status,
		txn.Metadata,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row pgx.Row) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	err := row.Scan(
		&t.ID,
		&t.WalletID,
		&t.Reference,
		&t.ExternalRef,
		&t.Type,
		&t.Direction,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.Metadata,
		&t.CreatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
