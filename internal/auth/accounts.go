package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var (
	// ErrInvalidEmail indicates a malformed or empty email address.
	ErrInvalidEmail = errors.New("auth: invalid email")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = fmt.Errorf("auth: password must be at least %d characters", minPasswordLength)
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	errMissingAccountsDB = errors.New("auth: database connection required")
	errMissingIDProvider = errors.New("auth: id provider required")
)

// Account models a registered user able to own tours.
type Account struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	Email            string `gorm:"column:email;size:255;not null;uniqueIndex:idx_accounts_email"`
	PasswordHash     string `gorm:"column:password_hash;size:255;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Account) TableName() string {
	return "accounts"
}

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// AccountsConfig describes the dependencies for account management.
type AccountsConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Accounts registers users and verifies their credentials. Passwords are
// stored as bcrypt hashes, never in the clear.
type Accounts struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewAccounts constructs the account service after validating dependencies.
func NewAccounts(cfg AccountsConfig) (*Accounts, error) {
	if cfg.Database == nil {
		return nil, errMissingAccountsDB
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accounts{db: cfg.Database, now: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// Register creates an account for the email and returns it. Emails are
// normalized to lowercase before storage and lookup.
func (a *Accounts) Register(ctx context.Context, email, password string) (Account, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	var existing Account
	err = a.db.WithContext(ctx).Where("email = ?", normalized).Take(&existing).Error
	if err == nil {
		return Account{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		a.logger.Error("account lookup failed", zap.Error(err))
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	id, err := a.idProvider.NewID()
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:               id,
		Email:            normalized,
		PasswordHash:     string(hash),
		CreatedAtSeconds: a.now().UTC().Unix(),
	}
	if err := a.db.WithContext(ctx).Create(&account).Error; err != nil {
		a.logger.Error("account insert failed", zap.Error(err))
		return Account{}, err
	}
	return account, nil
}

// SignIn verifies the credentials and returns the matching account. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (Account, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}

	var account Account
	err = a.db.WithContext(ctx).Where("email = ?", normalized).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		a.logger.Error("account lookup failed", zap.Error(err))
		return Account{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return account, nil
}

func normalizeEmail(email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}
