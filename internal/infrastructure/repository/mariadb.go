package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
)

type key int

const (
	txKey key = iota
)

// MariaDBRepository implements AccountRepository, TransactionRepository,
// and TransactionManager.
type MariaDBRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewMariaDBRepository(db *sql.DB, log *logrus.Logger) *MariaDBRepository {
	return &MariaDBRepository{db: db, log: log}
}

// -- TransactionManager --

func (r *MariaDBRepository) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Inject tx into context
	txCtx := context.WithValue(ctx, txKey, tx)

	if err := fn(txCtx); err != nil {
		// Rollback is best-effort: a rollback failure is logged and the
		// original error still surfaces.
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.log.WithError(rbErr).Error("failed to roll back transaction")
		}
		return err
	}

	return tx.Commit()
}

func (r *MariaDBRepository) getExecutor(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if tx, ok := ctx.Value(txKey).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// -- AccountRepository --

const accountColumns = `id, name, email, password_hash, postal_code, street, complement, neighborhood, city, state, balance, created_at, updated_at, disabled_at`

func (r *MariaDBRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts
		(name, email, password_hash, postal_code, street, complement, neighborhood, city, state, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.getExecutor(ctx).ExecContext(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.PostalCode,
		account.Street,
		account.Complement,
		account.Neighborhood,
		account.City,
		account.State,
		account.Balance,
		account.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = id
	return nil
}

func (r *MariaDBRepository) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ?"
	return scanAccount(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
}

func (r *MariaDBRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE email = ?"
	return scanAccount(r.getExecutor(ctx).QueryRowContext(ctx, query, email))
}

func (r *MariaDBRepository) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts WHERE id = ? FOR UPDATE"
	return scanAccount(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
}

func (r *MariaDBRepository) SaveAccount(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	query := `
		UPDATE accounts
		SET name = ?, email = ?, password_hash = ?, balance = ?, updated_at = ?, disabled_at = ?
		WHERE id = ?
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Balance,
		now,
		account.DisabledAt,
		account.ID,
	)
	if err == nil {
		account.UpdatedAt = &now
	}
	return err
}

func (r *MariaDBRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int, error) {
	var totalCount int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + accountColumns + " FROM accounts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccountRow(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return accounts, totalCount, nil
}

// -- TransactionRepository --

const transactionColumns = `t.id, t.sender_id, t.receiver_id, t.amount, t.type, t.description, t.created_at, t.reversed_at, COALESCE(s.name, ''), r.name`

const transactionJoins = `
	FROM transactions t
	LEFT JOIN accounts s ON s.id = t.sender_id
	JOIN accounts r ON r.id = t.receiver_id
`

func (r *MariaDBRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(sender_id, receiver_id, amount, type, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := r.getExecutor(ctx).ExecContext(ctx, query,
		tx.SenderID,
		tx.ReceiverID,
		tx.Amount,
		string(tx.Type),
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

func (r *MariaDBRepository) FindTransactionByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionJoins + "WHERE t.id = ?"
	return scanTransaction(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
}

func (r *MariaDBRepository) GetTransactionForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionJoins + "WHERE t.id = ? FOR UPDATE"
	return scanTransaction(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
}

func (r *MariaDBRepository) MarkTransactionReversed(ctx context.Context, tx *domain.Transaction) error {
	query := "UPDATE transactions SET reversed_at = ? WHERE id = ?"
	_, err := r.getExecutor(ctx).ExecContext(ctx, query, tx.ReversedAt, tx.ID)
	return err
}

func (r *MariaDBRepository) CountByAccountID(ctx context.Context, accountID int64) (int, error) {
	query := "SELECT COUNT(*) FROM transactions WHERE sender_id = ? OR receiver_id = ?"
	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, accountID, accountID).Scan(&count)
	return count, err
}

func (r *MariaDBRepository) ListByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*domain.Transaction, int, error) {
	countQuery := "SELECT COUNT(*) FROM transactions WHERE sender_id = ? OR receiver_id = ?"
	var totalCount int
	if err := r.getExecutor(ctx).QueryRowContext(ctx, countQuery, accountID, accountID).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + transactionColumns + transactionJoins + `
		WHERE t.sender_id = ? OR t.receiver_id = ?
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, accountID, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, totalCount, nil
}

func (r *MariaDBRepository) ListFiltered(ctx context.Context, accountID int64, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionJoins + "WHERE (t.sender_id = ? OR t.receiver_id = ?)"
	args := []any{accountID, accountID}

	switch filter.Type {
	case domain.FilterLast30Days:
		query += " AND t.created_at >= ?"
		args = append(args, time.Now().UTC().AddDate(0, 0, -30))
	case domain.FilterByMonth:
		query += " AND MONTH(t.created_at) = ? AND YEAR(t.created_at) = ?"
		args = append(args, filter.Month, filter.Year)
	case domain.FilterReversed:
		query += " AND t.reversed_at IS NOT NULL"
	}

	query += " ORDER BY t.created_at DESC, t.id DESC"

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// -- Scan helpers --

type scanner interface {
	Scan(dest ...any) error
}

func scanAccountFrom(s scanner) (*domain.Account, error) {
	var (
		acc        domain.Account
		balance    decimal.Decimal
		updatedAt  sql.NullTime
		disabledAt sql.NullTime
	)
	err := s.Scan(
		&acc.ID,
		&acc.Name,
		&acc.Email,
		&acc.PasswordHash,
		&acc.PostalCode,
		&acc.Street,
		&acc.Complement,
		&acc.Neighborhood,
		&acc.City,
		&acc.State,
		&balance,
		&acc.CreatedAt,
		&updatedAt,
		&disabledAt,
	)
	if err != nil {
		return nil, err
	}
	acc.Balance = balance
	if updatedAt.Valid {
		t := updatedAt.Time
		acc.UpdatedAt = &t
	}
	if disabledAt.Valid {
		t := disabledAt.Time
		acc.DisabledAt = &t
	}
	return &acc, nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	acc, err := scanAccountFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	return acc, err
}

func scanAccountRow(rows *sql.Rows) (*domain.Account, error) {
	return scanAccountFrom(rows)
}

func scanTransactionFrom(s scanner) (*domain.Transaction, error) {
	var (
		tx         domain.Transaction
		senderID   sql.NullInt64
		txType     string
		reversedAt sql.NullTime
	)
	err := s.Scan(
		&tx.ID,
		&senderID,
		&tx.ReceiverID,
		&tx.Amount,
		&txType,
		&tx.Description,
		&tx.CreatedAt,
		&reversedAt,
		&tx.SenderName,
		&tx.ReceiverName,
	)
	if err != nil {
		return nil, err
	}
	if senderID.Valid {
		id := senderID.Int64
		tx.SenderID = &id
	}
	tx.Type = domain.TransactionType(txType)
	if reversedAt.Valid {
		t := reversedAt.Time
		tx.ReversedAt = &t
	}
	return &tx, nil
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	tx, err := scanTransactionFrom(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tx, err
}

func collectTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	var entries []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransactionFrom(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
