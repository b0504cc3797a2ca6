package domain

import (
	"errors"
)

var (
	// ErrAccountNotFound indicates that the requested account was not found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSenderNotFound indicates that the transfer sender was not found.
	ErrSenderNotFound = errors.New("sender not found")

	// ErrReceiverNotFound indicates that the transfer receiver was not found.
	ErrReceiverNotFound = errors.New("receiver not found")

	// ErrTransactionNotFound indicates that the requested transaction was not found.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidAmount indicates that the amount is not strictly positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance indicates that the sender lacks funds.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSelfTransfer indicates that sender and receiver are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrOnlyTransfersReverted indicates a revert attempt on a non-transfer entry.
	ErrOnlyTransfersReverted = errors.New("only transfers can be reverted")

	// ErrAlreadyReverted indicates that the transfer was reverted before.
	ErrAlreadyReverted = errors.New("transfer already reverted")

	// ErrReceiverBalanceTooLow indicates the receiver has since spent the funds.
	ErrReceiverBalanceTooLow = errors.New("receiver lacks balance to revert")

	// ErrDescriptionTooLong indicates that the description exceeds the maximum length.
	ErrDescriptionTooLong = errors.New("description is too long")

	// ErrAccountDisabled indicates that a disabled account was used in a ledger operation.
	ErrAccountDisabled = errors.New("account is disabled")

	// ErrAccountAlreadyDisabled indicates a repeated disable attempt.
	ErrAccountAlreadyDisabled = errors.New("account is already disabled")

	// ErrAccountHasTransactions indicates a disable attempt on an account with history.
	ErrAccountHasTransactions = errors.New("cannot disable an account with transactions")

	// ErrInvalidFilterType indicates an unrecognized export filter token.
	ErrInvalidFilterType = errors.New("invalid filter type")

	// ErrMonthYearRequired indicates a bymonth export without both month and year.
	ErrMonthYearRequired = errors.New("month and year are required for the bymonth filter")

	// ErrInvalidMonth indicates a month outside 1-12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")

	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmailInUse indicates a duplicate registration.
	ErrEmailInUse = errors.New("email already in use")

	// ErrInvalidPostalCode indicates that the postal code could not be resolved.
	ErrInvalidPostalCode = errors.New("invalid postal code")

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindConflict
	KindUnauthorized
)

// KindOf maps a domain error to its taxonomy kind. Unknown errors are
// internal and must not leak details to callers.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSenderNotFound),
		errors.Is(err, ErrReceiverNotFound),
		errors.Is(err, ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrSelfTransfer),
		errors.Is(err, ErrOnlyTransfersReverted),
		errors.Is(err, ErrReceiverBalanceTooLow),
		errors.Is(err, ErrDescriptionTooLong),
		errors.Is(err, ErrAccountDisabled),
		errors.Is(err, ErrAccountHasTransactions),
		errors.Is(err, ErrInvalidFilterType),
		errors.Is(err, ErrMonthYearRequired),
		errors.Is(err, ErrInvalidMonth),
		errors.Is(err, ErrInvalidEmail),
		errors.Is(err, ErrInvalidPostalCode):
		return KindBadRequest
	case errors.Is(err, ErrAlreadyReverted),
		errors.Is(err, ErrEmailInUse),
		errors.Is(err, ErrAccountAlreadyDisabled):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	default:
		return KindInternal
	}
}
