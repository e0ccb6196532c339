package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
)

// CreateInvestment размещает капитал пользователя в тарифном плане.
// Лимиты плана и достаточность средств проверяются внутри атомарной
// единицы работы репозитория.
func (s *Service) CreateInvestment(ctx context.Context, userID, planID, amountCents int64) (*model.Investment, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: investment amount must be positive", ErrValidation)
	}
	return s.repo.CreateInvestment(ctx, userID, planID, amountCents, defaultCurrency,
		s.opts.ReferralPercent, time.Now())
}

// CancelInvestment отменяет собственную инвестицию до первой выплаты.
func (s *Service) CancelInvestment(ctx context.Context, userID, investmentID int64) error {
	return s.repo.CancelInvestment(ctx, userID, investmentID, defaultCurrency)
}

// ForceCancelInvestment принудительно отменяет инвестицию (супер-администратор).
func (s *Service) ForceCancelInvestment(ctx context.Context, investmentID int64) error {
	return s.repo.ForceCancelInvestment(ctx, investmentID, defaultCurrency)
}

// ToggleInvestmentState приостанавливает или возобновляет инвестицию.
func (s *Service) ToggleInvestmentState(ctx context.Context, investmentID int64, action string) error {
	a := repository.InvestmentAction(action)
	if a != repository.InvestmentPause && a != repository.InvestmentResume {
		return fmt.Errorf("%w: action must be pause or resume", ErrValidation)
	}
	return s.repo.ToggleInvestmentState(ctx, investmentID, a)
}

// ListUserInvestments возвращает страницу инвестиций пользователя.
func (s *Service) ListUserInvestments(ctx context.Context, userID int64, page, limit int) ([]model.Investment, int64, error) {
	page, limit = normalizePage(page, limit, 25)
	return s.repo.ListInvestments(ctx, repository.InvFilter{
		UserID: &userID,
		Page:   page,
		Limit:  limit,
	})
}

// AdminListInvestments возвращает страницу инвестиций по административному фильтру.
func (s *Service) AdminListInvestments(ctx context.Context, userID *int64, state string, page, limit int) ([]model.Investment, int64, error) {
	page, limit = normalizePage(page, limit, 25)
	return s.repo.ListInvestments(ctx, repository.InvFilter{
		UserID: userID,
		State:  model.InvestmentState(state),
		Page:   page,
		Limit:  limit,
	})
}

// CreatePlan создаёт тарифный план.
func (s *Service) CreatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error) {
	if err := validatePlan(p); err != nil {
		return nil, err
	}

	id, err := s.repo.CreatePlan(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.repo.GetPlan(ctx, id)
}

// UpdatePlan изменяет условия незаблокированного плана.
func (s *Service) UpdatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error) {
	if err := validatePlan(p); err != nil {
		return nil, err
	}

	if err := s.repo.UpdatePlan(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetPlan(ctx, p.ID)
}

// TogglePlanActive переключает доступность плана.
func (s *Service) TogglePlanActive(ctx context.Context, id int64) (bool, error) {
	return s.repo.TogglePlanActive(ctx, id)
}

// GetPlan возвращает план по идентификатору.
func (s *Service) GetPlan(ctx context.Context, id int64) (*model.Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

// ListPlans возвращает планы; для обычных пользователей — только активные.
func (s *Service) ListPlans(ctx context.Context, includeInactive bool) ([]model.Plan, error) {
	return s.repo.ListPlans(ctx, !includeInactive)
}

func validatePlan(p *model.Plan) error {
	switch {
	case p.Name == "" || p.Slug == "":
		return fmt.Errorf("%w: plan name and slug are required", ErrValidation)
	case p.Rate <= 0:
		return fmt.Errorf("%w: rate must be positive", ErrValidation)
	case p.PeriodCount < 1:
		return fmt.Errorf("%w: period count must be at least 1", ErrValidation)
	case p.PayoutFrequencySeconds <= 0:
		return fmt.Errorf("%w: payout frequency must be positive", ErrValidation)
	case p.MinAmountCents <= 0:
		return fmt.Errorf("%w: minimum amount must be positive", ErrValidation)
	case p.MaxAmountCents < p.MinAmountCents:
		return fmt.Errorf("%w: maximum amount must not be below minimum", ErrValidation)
	case p.ReferralPercent != nil && *p.ReferralPercent < 0:
		return fmt.Errorf("%w: referral percent must not be negative", ErrValidation)
	}

	switch p.RateUnit {
	case model.RateUnitHour, model.RateUnitDay, model.RateUnitWeek, model.RateUnitMonth, model.RateUnitLifetime:
	case "":
		p.RateUnit = model.RateUnitDay
	default:
		return fmt.Errorf("%w: unknown rate unit %q", ErrValidation, p.RateUnit)
	}

	return nil
}
