package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a registered user and their current balance.
// Balance is a fixed-point decimal (scale 2) and is mutated only by the
// ledger operations, inside a unit of work.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string

	// Address resolved from the postal code at registration.
	PostalCode   string
	Street       string
	Complement   string
	Neighborhood string
	City         string
	State        string

	Balance    decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DisabledAt *time.Time
}

// NewAccount creates a new enabled account with zero balance.
func NewAccount(name, email, passwordHash string) *Account {
	return &Account{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}
}

// Enabled reports whether the account may take part in ledger operations.
func (a *Account) Enabled() bool {
	return a.DisabledAt == nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

// Debit subtracts amount from the balance. The balance never goes negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Disable marks the account as disabled. Disabling is the only terminal
// state; accounts are never deleted.
func (a *Account) Disable(at time.Time) error {
	if a.DisabledAt != nil {
		return ErrAccountAlreadyDisabled
	}
	a.DisabledAt = &at
	return nil
}
