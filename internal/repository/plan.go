package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

const planColumns = `id, name, slug, description, rate, rate_unit, period_count,
	 payout_frequency_seconds, min_amount_cents, max_amount_cents, capital_back,
	 auto_renew, referral_percent, locked, active, created_at`

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Rate, &p.RateUnit,
		&p.PeriodCount, &p.PayoutFrequencySeconds, &p.MinAmountCents, &p.MaxAmountCents,
		&p.CapitalBack, &p.AutoRenew, &p.ReferralPercent, &p.Locked, &p.Active, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePlan создаёт тарифный план.
func (r *PostgresRepository) CreatePlan(ctx context.Context, p *model.Plan) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO plans
		 (name, slug, description, rate, rate_unit, period_count, payout_frequency_seconds,
		  min_amount_cents, max_amount_cents, capital_back, auto_renew, referral_percent, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		p.Name, p.Slug, p.Description, p.Rate, string(p.RateUnit), p.PeriodCount,
		p.PayoutFrequencySeconds, p.MinAmountCents, p.MaxAmountCents, p.CapitalBack,
		p.AutoRenew, p.ReferralPercent, p.Active,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err, "plans_slug_key") {
			return 0, fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
		}
		return 0, fmt.Errorf("insert plan: %w", err)
	}
	return id, nil
}

// UpdatePlan изменяет условия плана. Заблокированный план изменять нельзя —
// после первой инвестиции его экономические условия неизменяемы.
func (r *PostgresRepository) UpdatePlan(ctx context.Context, p *model.Plan) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var locked bool
		err := tx.QueryRow(ctx,
			`SELECT locked FROM plans WHERE id = $1 FOR UPDATE`, p.ID,
		).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlanNotFound
		}
		if err != nil {
			return fmt.Errorf("select plan: %w", err)
		}
		if locked {
			return ErrPlanLocked
		}

		_, err = tx.Exec(ctx,
			`UPDATE plans
			 SET name = $2, slug = $3, description = $4, rate = $5, rate_unit = $6,
			     period_count = $7, payout_frequency_seconds = $8, min_amount_cents = $9,
			     max_amount_cents = $10, capital_back = $11, auto_renew = $12,
			     referral_percent = $13, active = $14
			 WHERE id = $1`,
			p.ID, p.Name, p.Slug, p.Description, p.Rate, string(p.RateUnit), p.PeriodCount,
			p.PayoutFrequencySeconds, p.MinAmountCents, p.MaxAmountCents, p.CapitalBack,
			p.AutoRenew, p.ReferralPercent, p.Active,
		)
		if err != nil {
			if isUniqueViolation(err, "plans_slug_key") {
				return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
			}
			return fmt.Errorf("update plan: %w", err)
		}
		return nil
	})
}

// TogglePlanActive переключает доступность плана. Разрешено и для
// заблокированных планов: блокировка касается только экономических условий.
func (r *PostgresRepository) TogglePlanActive(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`UPDATE plans SET active = NOT active WHERE id = $1 RETURNING active`, id,
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrPlanNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle plan: %w", err)
	}
	return active, nil
}

// GetPlan возвращает план по идентификатору.
func (r *PostgresRepository) GetPlan(ctx context.Context, id int64) (*model.Plan, error) {
	p, err := scanPlan(r.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// ListPlans возвращает планы, при activeOnly — только доступные для инвестирования.
func (r *PostgresRepository) ListPlans(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer rows.Close()

	var res []model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		res = append(res, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// lockPlan блокирует план при появлении первой инвестиции. Идемпотентна
// и однонаправленна: повторные вызовы ничего не меняют.
func lockPlan(ctx context.Context, tx pgx.Tx, planID int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE plans SET locked = TRUE WHERE id = $1 AND NOT locked`, planID,
	)
	if err != nil {
		return fmt.Errorf("lock plan: %w", err)
	}
	return nil
}
