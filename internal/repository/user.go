package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// CreateUser создаёт пользователя и его кошелёк с нулевым балансом в одной транзакции.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte, referralCode string, referredBy *int64, currency string) (int64, error) {
	var id int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash, referral_code, referred_by)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			name, email, passwordHash, referralCode, referredBy,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err, "users_email_key") {
				return fmt.Errorf("%w: %s", ErrEmailTaken, email)
			}
			if isUniqueViolation(err, "users_referral_code_key") {
				return ErrReferralCodeTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO wallets (user_id, currency) VALUES ($1, $2)`,
			id, currency,
		)
		if err != nil {
			return fmt.Errorf("insert wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

const userColumns = `id, name, email, password_hash, role, suspended, referral_code, referred_by, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Suspended,
		&u.ReferralCode, &u.ReferredBy, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByReferralCode возвращает пользователя по его реферальному коду.
func (r *PostgresRepository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by referral code: %w", err)
	}
	return u, nil
}

// UserFilter задаёт условия выборки пользователей.
type UserFilter struct {
	Role      model.Role
	Suspended *bool
	Page      int
	Limit     int
}

// ListUsers возвращает страницу пользователей по фильтру и общее число записей.
func (r *PostgresRepository) ListUsers(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	where := `TRUE`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Role != "" {
		where += ` AND role = ` + arg(string(f.Role))
	}
	if f.Suspended != nil {
		where += ` AND suspended = ` + arg(*f.Suspended)
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where +
		` ORDER BY created_at DESC, id DESC` +
		` LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg((f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// ToggleUserSuspended приостанавливает или разблокирует пользователя и
// возвращает новое состояние. Приостановленный пользователь не проходит
// аутентификацию; выданные ранее токены действуют до истечения срока.
func (r *PostgresRepository) ToggleUserSuspended(ctx context.Context, id int64) (bool, error) {
	var suspended bool
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET suspended = NOT suspended WHERE id = $1 RETURNING suspended`, id,
	).Scan(&suspended)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle user suspended: %w", err)
	}
	return suspended, nil
}

// SetUserRole изменяет роль пользователя.
func (r *PostgresRepository) SetUserRole(ctx context.Context, id int64, role model.Role) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE id = $1`, id, string(role),
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
