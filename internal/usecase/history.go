package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// csvTimeLayout is part of the export contract and must not change.
const csvTimeLayout = "2006-01-02 15:04"

// AccountHistory pairs an account summary with one page of its entries.
type AccountHistory struct {
	Account      *domain.Account
	Transactions []*domain.Transaction
	TotalCount   int
	Page         int
	PageSize     int
}

// ListForAccount returns the account's summary and a page of its ledger
// entries, newest first. TotalCount is the unfiltered count of entries
// where the account is sender or receiver.
func (u *LedgerUseCase) ListForAccount(ctx context.Context, accountID int64, page, pageSize int) (*AccountHistory, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	account, err := u.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}

	entries, total, err := u.txRepo.ListByAccountID(ctx, accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	return &AccountHistory{
		Account:      account,
		Transactions: entries,
		TotalCount:   total,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

// ExportCSV renders the account's filtered entries as a UTF-8 CSV document.
// The six-column layout and timestamp format are an external contract.
func (u *LedgerUseCase) ExportCSV(ctx context.Context, accountID int64, filterType string, month, year *int) ([]byte, error) {
	kind, err := domain.ParseFilterType(filterType)
	if err != nil {
		return nil, err
	}

	filter := domain.TransactionFilter{Type: kind}
	if kind == domain.FilterByMonth {
		if month == nil || year == nil {
			return nil, domain.ErrMonthYearRequired
		}
		if *month < 1 || *month > 12 {
			return nil, domain.ErrInvalidMonth
		}
		filter.Month = *month
		filter.Year = *year
	}

	entries, err := u.txRepo.ListFiltered(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Id", "Date", "Type", "Amount", "Sender", "Receiver"}); err != nil {
		return nil, err
	}
	for _, t := range entries {
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.CreatedAt.Format(csvTimeLayout),
			string(t.Type),
			t.Amount.StringFixed(2),
			t.SenderName,
			t.ReceiverName,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
