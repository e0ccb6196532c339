package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// InvestmentAction задаёт административное действие над инвестицией.
type InvestmentAction string

const (
	InvestmentPause  InvestmentAction = "pause"
	InvestmentResume InvestmentAction = "resume"
)

// CreateInvestment размещает капитал в плане. Одна единица работы:
// резервирование средств, запись в журнал, создание инвестиции,
// блокировка плана и реферальная выплата фиксируются вместе.
func (r *PostgresRepository) CreateInvestment(ctx context.Context, userID, planID, amountCents int64, currency string, defaultReferralPercent float64, now time.Time) (*model.Investment, error) {
	var inv model.Investment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		// FOR UPDATE сериализует с UpdatePlan и параллельными инвестициями.
		plan, err := scanPlan(tx.QueryRow(ctx,
			`SELECT `+planColumns+` FROM plans WHERE id = $1 FOR UPDATE`, planID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPlanNotFound
			}
			return fmt.Errorf("select plan: %w", err)
		}
		if !plan.Active {
			return ErrPlanInactive
		}
		if !plan.AmountInRange(amountCents) {
			return ErrAmountOutOfRange
		}

		if err := debitAndReserve(ctx, tx, userID, currency, amountCents); err != nil {
			return err
		}

		inv = model.Investment{
			UserID:                   userID,
			PlanID:                   planID,
			AmountCents:              amountCents,
			StartAt:                  now,
			NextPayoutAt:             now.Add(time.Duration(plan.PayoutFrequencySeconds) * time.Second),
			TotalExpectedProfitCents: plan.ExpectedProfitCents(amountCents),
			State:                    model.InvestmentActive,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO investments
			 (user_id, plan_id, amount_cents, start_at, next_payout_at, total_expected_profit_cents, state)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			inv.UserID, inv.PlanID, inv.AmountCents, inv.StartAt, inv.NextPayoutAt,
			inv.TotalExpectedProfitCents, string(inv.State),
		).Scan(&inv.ID, &inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert investment: %w", err)
		}

		_, err = recordTx(ctx, tx, txRecord{
			UserID:      userID,
			Type:        model.TxTypeAdjustment,
			AmountCents: -amountCents,
			Currency:    currency,
			Status:      model.TxStatusCompleted,
			Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: inv.ID},
			Meta:        map[string]any{"reason": "investment_funding", "planId": planID},
		})
		if err != nil {
			return err
		}

		if err := lockPlan(ctx, tx, planID); err != nil {
			return err
		}

		return payReferralOnInvestment(ctx, tx, userID, inv.ID, amountCents, currency,
			plan.EffectiveReferralPercent(defaultReferralPercent))
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CancelInvestment отменяет собственную активную инвестицию до первой
// выплаты: резерв возвращается на основной баланс полностью.
func (r *PostgresRepository) CancelInvestment(ctx context.Context, userID, investmentID int64, currency string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := selectInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		if inv.UserID != userID {
			return ErrInvestmentNotOwned
		}
		if inv.State != model.InvestmentActive {
			return ErrInvestmentNotActive
		}
		if inv.PaymentsCompleted > 0 {
			return ErrPayoutsStarted
		}

		return cancelInvestment(ctx, tx, inv, currency, "investment_cancel_refund")
	})
}

// ForceCancelInvestment отменяет инвестицию независимо от владельца и
// числа выплат. Завершённые инвестиции неизменяемы; уже отменённые не
// отменяются повторно — резерв возвращается ровно один раз.
func (r *PostgresRepository) ForceCancelInvestment(ctx context.Context, investmentID int64, currency string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := selectInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		if inv.State == model.InvestmentCompleted {
			return ErrInvestmentCompleted
		}
		if inv.State == model.InvestmentCancelled {
			return ErrInvestmentNotActive
		}

		return cancelInvestment(ctx, tx, inv, currency, "admin_force_cancel")
	})
}

func cancelInvestment(ctx context.Context, tx pgx.Tx, inv *model.Investment, currency, reason string) error {
	if err := releaseReservedToMain(ctx, tx, inv.UserID, currency, inv.AmountCents); err != nil {
		return err
	}

	_, err := tx.Exec(ctx,
		`UPDATE investments SET state = 'cancelled' WHERE id = $1`, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("cancel investment: %w", err)
	}

	_, err = recordTx(ctx, tx, txRecord{
		UserID:      inv.UserID,
		Type:        model.TxTypeAdjustment,
		AmountCents: inv.AmountCents,
		Currency:    currency,
		Status:      model.TxStatusCompleted,
		Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: inv.ID},
		Meta:        map[string]any{"reason": reason},
	})
	return err
}

// ToggleInvestmentState приостанавливает или возобновляет инвестицию без
// движения средств. Завершённые и отменённые состояния — терминальные.
func (r *PostgresRepository) ToggleInvestmentState(ctx context.Context, investmentID int64, action InvestmentAction) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		inv, err := selectInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		if inv.State == model.InvestmentCompleted {
			return ErrInvestmentCompleted
		}
		if inv.State == model.InvestmentCancelled {
			return ErrInvestmentNotActive
		}

		state := model.InvestmentPaused
		if action == InvestmentResume {
			state = model.InvestmentActive
		}

		_, err = tx.Exec(ctx,
			`UPDATE investments SET state = $2 WHERE id = $1`,
			investmentID, string(state),
		)
		if err != nil {
			return fmt.Errorf("toggle investment: %w", err)
		}
		return nil
	})
}

const invColumns = `id, user_id, plan_id, amount_cents, start_at, next_payout_at,
	 payments_completed, total_expected_profit_cents, state, created_at`

func scanInvestment(row pgx.Row) (*model.Investment, error) {
	var inv model.Investment
	err := row.Scan(&inv.ID, &inv.UserID, &inv.PlanID, &inv.AmountCents, &inv.StartAt,
		&inv.NextPayoutAt, &inv.PaymentsCompleted, &inv.TotalExpectedProfitCents,
		&inv.State, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func selectInvestmentForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Investment, error) {
	inv, err := scanInvestment(tx.QueryRow(ctx,
		`SELECT `+invColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("select investment: %w", err)
	}
	return inv, nil
}

// InvFilter задаёт условия выборки инвестиций.
type InvFilter struct {
	UserID *int64
	State  model.InvestmentState
	Page   int
	Limit  int
}

// ListInvestments возвращает страницу инвестиций с названием и ставкой плана.
func (r *PostgresRepository) ListInvestments(ctx context.Context, f InvFilter) ([]model.Investment, int64, error) {
	where := `TRUE`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		where += ` AND i.user_id = ` + arg(*f.UserID)
	}
	if f.State != "" {
		where += ` AND i.state = ` + arg(string(f.State))
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM investments i WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count investments: %w", err)
	}

	query := `SELECT i.id, i.user_id, i.plan_id, p.name, p.rate, i.amount_cents, i.start_at,
		 i.next_payout_at, i.payments_completed, i.total_expected_profit_cents, i.state, i.created_at
		 FROM investments i
		 JOIN plans p ON p.id = i.plan_id
		 WHERE ` + where +
		` ORDER BY i.created_at DESC, i.id DESC` +
		` LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg((f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select investments: %w", err)
	}
	defer rows.Close()

	var res []model.Investment
	for rows.Next() {
		var inv model.Investment
		err := rows.Scan(&inv.ID, &inv.UserID, &inv.PlanID, &inv.PlanName, &inv.PlanRate,
			&inv.AmountCents, &inv.StartAt, &inv.NextPayoutAt, &inv.PaymentsCompleted,
			&inv.TotalExpectedProfitCents, &inv.State, &inv.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan investment: %w", err)
		}
		res = append(res, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// DueInvestments возвращает идентификаторы активных инвестиций с
// наступившим сроком выплаты.
func (r *PostgresRepository) DueInvestments(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM investments
		 WHERE state = 'active' AND next_payout_at <= $1
		 ORDER BY next_payout_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due investments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due investment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// ApplyInvestmentPayout начисляет одну периодическую выплату: прибыль
// зачисляется на процентный баланс, фиксируется payout-транзакция,
// счётчик выплат и срок следующей выплаты продвигаются. После последней
// выплаты инвестиция завершается, а зарезервированный капитал либо
// возвращается на основной баланс (capitalBack), либо покидает систему.
// Возвращает false, если инвестиция уже не активна или срок не наступил.
func (r *PostgresRepository) ApplyInvestmentPayout(ctx context.Context, investmentID int64, currency string, now time.Time) (bool, error) {
	applied := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		applied = false

		inv, err := selectInvestmentForUpdate(ctx, tx, investmentID)
		if err != nil {
			return err
		}
		// Повторная проверка под блокировкой: состояние могло измениться
		// между выборкой due-списка и этой транзакцией.
		if inv.State != model.InvestmentActive || inv.NextPayoutAt.After(now) {
			return nil
		}

		var plan model.Plan
		err = tx.QueryRow(ctx,
			`SELECT rate, period_count, payout_frequency_seconds, capital_back
			 FROM plans WHERE id = $1`,
			inv.PlanID,
		).Scan(&plan.Rate, &plan.PeriodCount, &plan.PayoutFrequencySeconds, &plan.CapitalBack)
		if err != nil {
			return fmt.Errorf("select plan for payout: %w", err)
		}

		profit := plan.PerPeriodProfitCents(inv.AmountCents)
		if profit > 0 {
			if err := creditInterest(ctx, tx, inv.UserID, currency, profit); err != nil {
				return err
			}
			_, err = recordTx(ctx, tx, txRecord{
				UserID:      inv.UserID,
				Type:        model.TxTypePayout,
				AmountCents: profit,
				Currency:    currency,
				Status:      model.TxStatusCompleted,
				Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: inv.ID},
				Meta:        map[string]any{"period": inv.PaymentsCompleted + 1},
			})
			if err != nil {
				return err
			}
		}

		completed := inv.PaymentsCompleted+1 >= plan.PeriodCount
		if completed {
			_, err = tx.Exec(ctx,
				`UPDATE investments
				 SET payments_completed = payments_completed + 1, state = 'completed'
				 WHERE id = $1`,
				inv.ID,
			)
			if err != nil {
				return fmt.Errorf("complete investment: %w", err)
			}

			if plan.CapitalBack {
				if err := releaseReservedToMain(ctx, tx, inv.UserID, currency, inv.AmountCents); err != nil {
					return err
				}
				_, err = recordTx(ctx, tx, txRecord{
					UserID:      inv.UserID,
					Type:        model.TxTypeAdjustment,
					AmountCents: inv.AmountCents,
					Currency:    currency,
					Status:      model.TxStatusCompleted,
					Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: inv.ID},
					Meta:        map[string]any{"reason": "capital_returned"},
				})
				if err != nil {
					return err
				}
			} else {
				if err := reduceReserved(ctx, tx, inv.UserID, currency, inv.AmountCents); err != nil {
					return err
				}
				_, err = recordTx(ctx, tx, txRecord{
					UserID:      inv.UserID,
					Type:        model.TxTypeAdjustment,
					AmountCents: -inv.AmountCents,
					Currency:    currency,
					Status:      model.TxStatusCompleted,
					Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: inv.ID},
					Meta:        map[string]any{"reason": "capital_consumed"},
				})
				if err != nil {
					return err
				}
			}
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE investments
				 SET payments_completed = payments_completed + 1,
				     next_payout_at = next_payout_at + make_interval(secs => $2)
				 WHERE id = $1`,
				inv.ID, plan.PayoutFrequencySeconds,
			)
			if err != nil {
				return fmt.Errorf("advance investment: %w", err)
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
