package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vithxrlorencetti/TransactionsAPI/internal/domain"
)

// Address is a postal address resolved from a postal code.
type Address struct {
	Street       string
	Complement   string
	Neighborhood string
	City         string
	State        string
}

// AddressLookup resolves postal codes to addresses. A nil result means the
// postal code does not exist.
type AddressLookup interface {
	Lookup(ctx context.Context, postalCode string) (*Address, error)
}

// TokenIssuer signs an access token for an account.
type TokenIssuer interface {
	Issue(account *domain.Account) (string, error)
}

// AccountUseCase covers registration, authentication and account lifecycle.
type AccountUseCase struct {
	accountRepo domain.AccountRepository
	txRepo      domain.TransactionRepository
	addresses   AddressLookup
	tokens      TokenIssuer
	log         *logrus.Logger
}

func NewAccountUseCase(
	accountRepo domain.AccountRepository,
	txRepo domain.TransactionRepository,
	addresses AddressLookup,
	tokens TokenIssuer,
	log *logrus.Logger,
) *AccountUseCase {
	return &AccountUseCase{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		addresses:   addresses,
		tokens:      tokens,
		log:         log,
	}
}

// Register creates a new account with zero balance. The postal code must
// resolve to a real address or registration fails. Returns the formatted
// address.
func (u *AccountUseCase) Register(ctx context.Context, name, email, password, postalCode string) (string, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return "", domain.ErrInvalidEmail
	}

	existing, err := u.accountRepo.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", domain.ErrEmailInUse
	}

	address, err := u.addresses.Lookup(ctx, postalCode)
	if err != nil {
		return "", err
	}
	if address == nil {
		return "", domain.ErrInvalidPostalCode
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	account := domain.NewAccount(name, email, string(hash))
	account.PostalCode = postalCode
	account.Street = address.Street
	account.Complement = address.Complement
	account.Neighborhood = address.Neighborhood
	account.City = address.City
	account.State = address.State

	if err := u.accountRepo.CreateAccount(ctx, account); err != nil {
		return "", err
	}

	u.log.WithField("account_id", account.ID).Info("account registered")
	return fmt.Sprintf("%s, %s, %s - %s", address.Street, address.Neighborhood, address.City, address.State), nil
}

// Login authenticates an account and returns a signed token.
func (u *AccountUseCase) Login(ctx context.Context, email, password string) (string, error) {
	account, err := u.accountRepo.FindAccountByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", domain.ErrAccountNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}
	if !account.Enabled() {
		return "", domain.ErrAccountAlreadyDisabled
	}

	token, err := u.tokens.Issue(account)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	u.log.WithField("account_id", account.ID).Info("account logged in")
	return token, nil
}

// Disable marks the account as disabled. Only accounts with no ledger
// entries, as sender or receiver, may be disabled. Returns the account name.
func (u *AccountUseCase) Disable(ctx context.Context, id int64) (string, error) {
	account, err := u.accountRepo.FindAccountByID(ctx, id)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", domain.ErrAccountNotFound
	}
	if !account.Enabled() {
		return "", domain.ErrAccountAlreadyDisabled
	}

	count, err := u.txRepo.CountByAccountID(ctx, id)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return "", domain.ErrAccountHasTransactions
	}

	if err := account.Disable(time.Now().UTC()); err != nil {
		return "", err
	}
	if err := u.accountRepo.SaveAccount(ctx, account); err != nil {
		return "", err
	}

	u.log.WithField("account_id", id).Info("account disabled")
	return account.Name, nil
}

// Get returns the account with the given id.
func (u *AccountUseCase) Get(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := u.accountRepo.FindAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

// List returns a page of accounts, newest first, with the total count.
func (u *AccountUseCase) List(ctx context.Context, page, pageSize int) ([]*domain.Account, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return u.accountRepo.ListAccounts(ctx, pageSize, (page-1)*pageSize)
}
