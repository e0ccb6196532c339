package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
)

// Deposit зачисляет средства пользователю от имени администратора или
// платёжного провайдера.
func (s *Service) Deposit(ctx context.Context, userID, amountCents int64, currency, provider string, providerTxID *string) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}
	if currency == "" {
		currency = defaultCurrency
	}
	if provider == "" {
		provider = "manual"
	}
	return s.repo.CreateDeposit(ctx, userID, amountCents, currency, provider, providerTxID)
}

// CreateCryptoDeposit создаёт заявку на криптодепозит. Средства будут
// зачислены только после подтверждения администратором.
func (s *Service) CreateCryptoDeposit(ctx context.Context, userID, amountCents int64) (*model.Transaction, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}

	id, err := s.repo.CreateCryptoDeposit(ctx, userID, amountCents, defaultCurrency, s.opts.CryptoDepositAddress)
	if err != nil {
		return nil, err
	}
	return s.repo.GetTransaction(ctx, id)
}

// ListPendingCryptoDeposits возвращает криптодепозиты, ожидающие подтверждения.
func (s *Service) ListPendingCryptoDeposits(ctx context.Context) ([]model.Transaction, error) {
	return s.repo.ListPendingCryptoDeposits(ctx)
}

// ApproveCryptoDeposit подтверждает криптодепозит и зачисляет средства.
func (s *Service) ApproveCryptoDeposit(ctx context.Context, txID int64) error {
	return s.repo.ApproveCryptoDeposit(ctx, txID)
}

// RequestWithdrawal создаёт заявку на вывод: средства переходят в резерв
// до решения администратора.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, amountCents int64, destination map[string]any) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("%w: withdrawal amount must be positive", ErrValidation)
	}
	return s.repo.RequestWithdrawal(ctx, userID, amountCents, defaultCurrency, destination)
}

// ProcessWithdrawal завершает или отклоняет ожидающий вывод.
func (s *Service) ProcessWithdrawal(ctx context.Context, txID int64, action string, providerTxID *string, feeCents int64) error {
	a := repository.WithdrawalAction(action)
	if a != repository.WithdrawalComplete && a != repository.WithdrawalFail {
		return fmt.Errorf("%w: action must be complete or fail", ErrValidation)
	}
	if feeCents < 0 {
		return fmt.Errorf("%w: fee must not be negative", ErrValidation)
	}
	return s.repo.ProcessWithdrawal(ctx, txID, a, providerTxID, feeCents)
}

// GetBalance возвращает кошелёк пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.repo.GetWallet(ctx, userID, defaultCurrency)
}

// GetDashboard возвращает сводку личного кабинета.
func (s *Service) GetDashboard(ctx context.Context, userID int64) (*model.DashboardSummary, error) {
	return s.repo.DashboardSummary(ctx, userID, defaultCurrency)
}

// GetTransaction возвращает транзакцию; пользователи видят только свои,
// администраторы — любые.
func (s *Service) GetTransaction(ctx context.Context, id, requesterID int64, requesterRole model.Role) (*model.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if !requesterRole.IsAdmin() && t.UserID != requesterID {
		return nil, ErrForbidden
	}
	return t, nil
}

// ListUserTransactions возвращает страницу транзакций пользователя.
func (s *Service) ListUserTransactions(ctx context.Context, userID int64, txType string, page, limit int) ([]model.Transaction, int64, error) {
	page, limit = normalizePage(page, limit, 25)
	return s.repo.ListTransactions(ctx, repository.TxFilter{
		UserID: &userID,
		Type:   model.TxType(txType),
		Page:   page,
		Limit:  limit,
	})
}

// AdminListTransactions возвращает страницу транзакций по административному фильтру.
func (s *Service) AdminListTransactions(ctx context.Context, userID *int64, txType, status string, startDate, endDate *time.Time, page, limit int) ([]model.Transaction, int64, error) {
	page, limit = normalizePage(page, limit, 50)
	return s.repo.ListTransactions(ctx, repository.TxFilter{
		UserID:    userID,
		Type:      model.TxType(txType),
		Status:    model.TxStatus(status),
		StartDate: startDate,
		EndDate:   endDate,
		Page:      page,
		Limit:     limit,
	})
}
