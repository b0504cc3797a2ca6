package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLength is the maximum allowed description length.
const MaxDescriptionLength = 255

// TransactionType is the kind of a ledger entry.
type TransactionType string

const (
	TypeDeposit  TransactionType = "Deposit"
	TypeTransfer TransactionType = "Transfer"
)

// Transaction is an immutable ledger entry. The only later write a
// transaction ever receives is the single ReversedAt marker set when a
// transfer is reverted. Entries are never deleted.
type Transaction struct {
	ID          int64
	SenderID    *int64 // nil for deposits
	ReceiverID  int64
	Amount      decimal.Decimal
	Type        TransactionType
	Description string
	CreatedAt   time.Time
	ReversedAt  *time.Time

	// Counterparty display names, populated by list queries.
	// SenderName is empty for deposits.
	SenderName   string
	ReceiverName string
}

// Reversed reports whether the transfer has already been reverted.
func (t *Transaction) Reversed() bool {
	return t.ReversedAt != nil
}

// MarkReversed sets the reversal marker. It is valid at most once and
// only for transfers.
func (t *Transaction) MarkReversed(at time.Time) error {
	if t.Type != TypeTransfer {
		return ErrOnlyTransfersReverted
	}
	if t.ReversedAt != nil {
		return ErrAlreadyReverted
	}
	t.ReversedAt = &at
	return nil
}

// FilterType narrows a filtered transaction listing.
type FilterType int

const (
	FilterAll FilterType = iota
	FilterLast30Days
	FilterByMonth
	FilterReversed
)

// ParseFilterType parses a filter token case-insensitively.
func ParseFilterType(s string) (FilterType, error) {
	switch strings.ToLower(s) {
	case "all":
		return FilterAll, nil
	case "last30days":
		return FilterLast30Days, nil
	case "bymonth":
		return FilterByMonth, nil
	case "reversed":
		return FilterReversed, nil
	default:
		return FilterAll, ErrInvalidFilterType
	}
}

// TransactionFilter is the query shape for filtered listings.
// Month and Year are only meaningful for FilterByMonth.
type TransactionFilter struct {
	Type  FilterType
	Month int
	Year  int
}
