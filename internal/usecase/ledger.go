package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
)

// LedgerUseCase implements the balance-mutation engine: deposit, transfer
// and revert. Every operation re-fetches current state inside one unit of
// work; validations and the mutations they guard are never separated by a
// window another operation could exploit.
type LedgerUseCase struct {
	accountRepo domain.AccountRepository
	txRepo      domain.TransactionRepository
	tm          domain.TransactionManager
	publisher   domain.EventPublisher // optional
	log         *logrus.Logger
}

func NewLedgerUseCase(
	accountRepo domain.AccountRepository,
	txRepo domain.TransactionRepository,
	tm domain.TransactionManager,
	publisher domain.EventPublisher,
	log *logrus.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		tm:          tm,
		publisher:   publisher,
		log:         log,
	}
}

// Deposit credits amount to the account and records a Deposit entry.
// Returns the receiver's display name.
func (u *LedgerUseCase) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (string, error) {
	if amount.Sign() <= 0 {
		return "", domain.ErrInvalidAmount
	}
	if len(description) > domain.MaxDescriptionLength {
		return "", domain.ErrDescriptionTooLong
	}

	var (
		account *domain.Account
		entry   *domain.Transaction
	)

	err := u.tm.Run(ctx, func(ctx context.Context) error {
		acc, err := u.accountRepo.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if acc == nil {
			return domain.ErrAccountNotFound
		}
		if !acc.Enabled() {
			return domain.ErrAccountDisabled
		}

		if err := acc.Credit(amount); err != nil {
			return err
		}

		entry = &domain.Transaction{
			ReceiverID:  accountID,
			Amount:      amount,
			Type:        domain.TypeDeposit,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}

		if err := u.accountRepo.SaveAccount(ctx, acc); err != nil {
			return err
		}
		if err := u.txRepo.CreateTransaction(ctx, entry); err != nil {
			return err
		}

		account = acc
		return nil
	})
	if err != nil {
		return "", err
	}

	u.log.WithFields(logrus.Fields{
		"operation":      "deposit",
		"account_id":     accountID,
		"transaction_id": entry.ID,
	}).Info("deposit completed")

	u.publishCompleted(ctx, entry)
	return account.Name, nil
}

// Transfer moves amount from sender to receiver and records a Transfer
// entry. Returns the sender's and receiver's display names.
func (u *LedgerUseCase) Transfer(ctx context.Context, senderID, receiverID int64, amount decimal.Decimal, description string) (string, string, error) {
	if senderID == receiverID {
		return "", "", domain.ErrSelfTransfer
	}
	if amount.Sign() <= 0 {
		return "", "", domain.ErrInvalidAmount
	}
	if len(description) > domain.MaxDescriptionLength {
		return "", "", domain.ErrDescriptionTooLong
	}

	var (
		sender   *domain.Account
		receiver *domain.Account
		entry    *domain.Transaction
	)

	err := u.tm.Run(ctx, func(ctx context.Context) error {
		var err error
		sender, receiver, err = u.lockAccountPair(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if sender == nil {
			return domain.ErrSenderNotFound
		}
		if receiver == nil {
			return domain.ErrReceiverNotFound
		}
		if !sender.Enabled() || !receiver.Enabled() {
			return domain.ErrAccountDisabled
		}

		if err := sender.Debit(amount); err != nil {
			return err
		}
		if err := receiver.Credit(amount); err != nil {
			return err
		}

		sid := senderID
		entry = &domain.Transaction{
			SenderID:    &sid,
			ReceiverID:  receiverID,
			Amount:      amount,
			Type:        domain.TypeTransfer,
			Description: description,
			CreatedAt:   time.Now().UTC(),
		}

		if err := u.accountRepo.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err := u.accountRepo.SaveAccount(ctx, receiver); err != nil {
			return err
		}
		return u.txRepo.CreateTransaction(ctx, entry)
	})
	if err != nil {
		return "", "", err
	}

	u.log.WithFields(logrus.Fields{
		"operation":      "transfer",
		"sender_id":      senderID,
		"receiver_id":    receiverID,
		"transaction_id": entry.ID,
	}).Info("transfer completed")

	u.publishCompleted(ctx, entry)
	return sender.Name, receiver.Name, nil
}

// Revert undoes a transfer: the receiver is debited, the sender credited,
// and the entry's reversal marker set. The original entry is never deleted
// or duplicated.
func (u *LedgerUseCase) Revert(ctx context.Context, transactionID int64) error {
	err := u.tm.Run(ctx, func(ctx context.Context) error {
		entry, err := u.txRepo.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrTransactionNotFound
		}
		if entry.Type != domain.TypeTransfer {
			return domain.ErrOnlyTransfersReverted
		}
		if entry.Reversed() {
			return domain.ErrAlreadyReverted
		}

		sender, receiver, err := u.lockAccountPair(ctx, *entry.SenderID, entry.ReceiverID)
		if err != nil {
			return err
		}
		if sender == nil {
			return domain.ErrSenderNotFound
		}
		if receiver == nil {
			return domain.ErrReceiverNotFound
		}

		// The receiver may have since spent the funds. Surface that rather
		// than letting the balance go negative.
		if receiver.Balance.Cmp(entry.Amount) < 0 {
			return domain.ErrReceiverBalanceTooLow
		}

		if err := receiver.Debit(entry.Amount); err != nil {
			return err
		}
		if err := sender.Credit(entry.Amount); err != nil {
			return err
		}
		if err := entry.MarkReversed(time.Now().UTC()); err != nil {
			return err
		}

		if err := u.accountRepo.SaveAccount(ctx, sender); err != nil {
			return err
		}
		if err := u.accountRepo.SaveAccount(ctx, receiver); err != nil {
			return err
		}
		return u.txRepo.MarkTransactionReversed(ctx, entry)
	})
	if err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"operation":      "revert",
		"transaction_id": transactionID,
	}).Info("transfer reverted")
	return nil
}

// lockAccountPair reads both account rows with row-level locks, always in
// ascending id order so two concurrent operations on the same pair cannot
// deadlock. Missing accounts come back nil.
func (u *LedgerUseCase) lockAccountPair(ctx context.Context, firstID, secondID int64) (*domain.Account, *domain.Account, error) {
	lo, hi := firstID, secondID
	if lo > hi {
		lo, hi = hi, lo
	}

	loAcc, err := u.accountRepo.GetAccountForUpdate(ctx, lo)
	if err != nil {
		return nil, nil, err
	}
	hiAcc, err := u.accountRepo.GetAccountForUpdate(ctx, hi)
	if err != nil {
		return nil, nil, err
	}

	if lo == firstID {
		return loAcc, hiAcc, nil
	}
	return hiAcc, loAcc, nil
}

func (u *LedgerUseCase) publishCompleted(ctx context.Context, entry *domain.Transaction) {
	if u.publisher == nil {
		return
	}
	event := domain.TransactionCompleted{
		EventID:       uuid.New().String(),
		TransactionID: entry.ID,
		SenderID:      entry.SenderID,
		ReceiverID:    entry.ReceiverID,
		Amount:        entry.Amount,
		Type:          entry.Type,
		OccurredAt:    entry.CreatedAt,
	}
	if err := u.publisher.Publish(ctx, event); err != nil {
		// The operation is already committed; the event is best-effort.
		u.log.WithError(err).WithField("transaction_id", entry.ID).
			Warn("failed to publish transaction event")
	}
}
