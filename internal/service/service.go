// Package service реализует бизнес-логику инвестиционной платформы.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserSuspended возвращается при входе заблокированного пользователя.
	ErrUserSuspended = errors.New("user is suspended")
	// ErrValidation возвращается при некорректных входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden возвращается при обращении к чужому ресурсу.
	ErrForbidden = errors.New("forbidden")
)

const (
	defaultCurrency = "USD"
	passwordMinLen  = 8

	referralCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
	referralCodeLen      = 8
	referralCodeRetries  = 5

	payoutBatchSize = 100
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, name, email string, passwordHash []byte, referralCode string, referredBy *int64, currency string) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	ListUsers(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error)
	ToggleUserSuspended(ctx context.Context, id int64) (bool, error)
	SetUserRole(ctx context.Context, id int64, role model.Role) error

	GetWallet(ctx context.Context, userID int64, currency string) (*model.Wallet, error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactions(ctx context.Context, f repository.TxFilter) ([]model.Transaction, int64, error)
	DashboardSummary(ctx context.Context, userID int64, currency string) (*model.DashboardSummary, error)

	CreateDeposit(ctx context.Context, userID, amountCents int64, currency string, provider string, providerTxID *string) (int64, error)
	CreateCryptoDeposit(ctx context.Context, userID, amountCents int64, currency, walletAddress string) (int64, error)
	ListPendingCryptoDeposits(ctx context.Context) ([]model.Transaction, error)
	ApproveCryptoDeposit(ctx context.Context, txID int64) error

	RequestWithdrawal(ctx context.Context, userID, amountCents int64, currency string, destination map[string]any) (int64, error)
	ProcessWithdrawal(ctx context.Context, txID int64, action repository.WithdrawalAction, providerTxID *string, feeCents int64) error

	CreatePlan(ctx context.Context, p *model.Plan) (int64, error)
	UpdatePlan(ctx context.Context, p *model.Plan) error
	TogglePlanActive(ctx context.Context, id int64) (bool, error)
	GetPlan(ctx context.Context, id int64) (*model.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error)

	CreateInvestment(ctx context.Context, userID, planID, amountCents int64, currency string, defaultReferralPercent float64, now time.Time) (*model.Investment, error)
	CancelInvestment(ctx context.Context, userID, investmentID int64, currency string) error
	ForceCancelInvestment(ctx context.Context, investmentID int64, currency string) error
	ToggleInvestmentState(ctx context.Context, investmentID int64, action repository.InvestmentAction) error
	ListInvestments(ctx context.Context, f repository.InvFilter) ([]model.Investment, int64, error)

	DueInvestments(ctx context.Context, now time.Time, limit int) ([]int64, error)
	ApplyInvestmentPayout(ctx context.Context, investmentID int64, currency string, now time.Time) (bool, error)
}

// Options содержит параметры конструирования сервиса.
type Options struct {
	// ReferralPercent — комиссия по умолчанию, когда план не задаёт свою.
	ReferralPercent float64
	// PayoutInterval — период фонового начисления выплат; 0 отключает планировщик.
	PayoutInterval time.Duration
	// CryptoDepositAddress — адрес для приёма криптодепозитов.
	CryptoDepositAddress string
}

// Service содержит бизнес-логику инвестиционной платформы.
type Service struct {
	repo   Repository
	logger *zap.Logger
	opts   Options
}

// NewService создаёт сервис с указанным репозиторием и параметрами.
func NewService(repo Repository, logger *zap.Logger, opts Options) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		opts:   opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Register регистрирует пользователя и создаёт его кошелёк. Реферальный
// код приглашающего необязателен; несуществующий код игнорируется.
func (s *Service) Register(ctx context.Context, name, email, password, referralCode string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}
	if len(password) < passwordMinLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, passwordMinLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var referredBy *int64
	if referralCode != "" {
		referrer, err := s.repo.GetUserByReferralCode(ctx, referralCode)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
		if referrer != nil {
			referredBy = &referrer.ID
		}
	}

	var id int64
	for i := 0; i < referralCodeRetries; i++ {
		code, err := generateReferralCode()
		if err != nil {
			return nil, err
		}

		id, err = s.repo.CreateUser(ctx, name, email, hash, code, referredBy, defaultCurrency)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrReferralCodeTaken) && i < referralCodeRetries-1 {
			continue
		}
		return nil, err
	}

	return s.repo.GetUserByID(ctx, id)
}

// Authenticate проверяет учётные данные и возвращает пользователя.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Suspended {
		return nil, ErrUserSuspended
	}

	return u, nil
}

func generateReferralCode() (string, error) {
	out := make([]byte, referralCodeLen)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		out[i] = referralCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
