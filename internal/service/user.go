package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
)

// GetProfile возвращает профиль пользователя вместе с его кошельком.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, *model.Wallet, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	w, err := s.repo.GetWallet(ctx, userID, defaultCurrency)
	if err != nil {
		return nil, nil, err
	}
	return u, w, nil
}

// AdminListUsers возвращает страницу пользователей с фильтрами по роли
// и состоянию ("active" | "suspended").
func (s *Service) AdminListUsers(ctx context.Context, role, status string, page, limit int) ([]model.User, int64, error) {
	var suspended *bool
	switch status {
	case "":
	case "active":
		v := false
		suspended = &v
	case "suspended":
		v := true
		suspended = &v
	default:
		return nil, 0, fmt.Errorf("%w: status must be active or suspended", ErrValidation)
	}

	page, limit = normalizePage(page, limit, 25)
	return s.repo.ListUsers(ctx, repository.UserFilter{
		Role:      model.Role(role),
		Suspended: suspended,
		Page:      page,
		Limit:     limit,
	})
}

// AdminGetUser возвращает карточку пользователя: профиль, кошелёк,
// число инвестиций и последние транзакции.
func (s *Service) AdminGetUser(ctx context.Context, userID int64) (*model.UserDetails, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &model.UserDetails{User: *u}

	w, err := s.repo.GetWallet(ctx, userID, defaultCurrency)
	if err != nil && !errors.Is(err, repository.ErrWalletNotFound) {
		return nil, err
	}
	d.Wallet = w

	_, invTotal, err := s.repo.ListInvestments(ctx, repository.InvFilter{
		UserID: &userID,
		Page:   1,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	d.InvestmentsCount = invTotal

	recent, _, err := s.repo.ListTransactions(ctx, repository.TxFilter{
		UserID: &userID,
		Page:   1,
		Limit:  20,
	})
	if err != nil {
		return nil, err
	}
	d.RecentTransactions = recent

	return d, nil
}

// ToggleUserSuspended приостанавливает или разблокирует пользователя.
func (s *Service) ToggleUserSuspended(ctx context.Context, userID int64) (bool, error) {
	return s.repo.ToggleUserSuspended(ctx, userID)
}

// SetUserRole изменяет роль пользователя (только супер-администратор).
func (s *Service) SetUserRole(ctx context.Context, userID int64, role string) error {
	switch model.Role(role) {
	case model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.repo.SetUserRole(ctx, userID, model.Role(role))
}
