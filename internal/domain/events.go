package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCompleted is emitted after a deposit or transfer commits.
type TransactionCompleted struct {
	EventID       string          `json:"event_id"`
	TransactionID int64           `json:"transaction_id"`
	SenderID      *int64          `json:"sender_id,omitempty"`
	ReceiverID    int64           `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"`
	Type          TransactionType `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// EventPublisher publishes ledger events to downstream consumers.
// Publishing is best-effort: it runs after commit and never undoes one.
type EventPublisher interface {
	Publish(ctx context.Context, event TransactionCompleted) error
}
