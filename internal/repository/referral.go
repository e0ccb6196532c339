package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// payReferralOnInvestment выплачивает реферальную комиссию за первую
// инвестицию приглашённого пользователя. Выполняется в транзакции
// вызывающего кода — логика написана один раз и параметризована
// дескриптором единицы работы.
//
// Идемпотентность структурная: уникальная пара (referrer, referee) и
// терминальный флаг paid. Повторный вызов для того же referee — no-op.
// Нулевая комиссия закрывает запись навсегда без выплаты.
func payReferralOnInvestment(ctx context.Context, tx pgx.Tx, refereeID, investmentID, amountCents int64, currency string, percent float64) error {
	var referrerID *int64
	err := tx.QueryRow(ctx,
		`SELECT referred_by FROM users WHERE id = $1`, refereeID,
	).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("select referee: %w", err)
	}
	if referrerID == nil {
		return nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO referrals (referrer_id, referee_id)
		 VALUES ($1, $2)
		 ON CONFLICT (referrer_id, referee_id) DO NOTHING`,
		*referrerID, refereeID,
	)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}

	// FOR UPDATE сериализует конкурирующие выплаты по одной паре.
	var (
		referralID int64
		paid       bool
	)
	err = tx.QueryRow(ctx,
		`SELECT id, paid FROM referrals
		 WHERE referrer_id = $1 AND referee_id = $2
		 FOR UPDATE`,
		*referrerID, refereeID,
	).Scan(&referralID, &paid)
	if err != nil {
		return fmt.Errorf("select referral: %w", err)
	}
	if paid {
		return nil
	}

	commission := model.PercentCents(amountCents, percent)
	if commission <= 0 {
		_, err = tx.Exec(ctx,
			`UPDATE referrals SET commission_cents = 0, paid = TRUE WHERE id = $1`,
			referralID,
		)
		if err != nil {
			return fmt.Errorf("close referral: %w", err)
		}
		return nil
	}

	// Реферальный доход доступен сразу — без резервирования.
	if err := creditMain(ctx, tx, *referrerID, currency, commission); err != nil {
		return err
	}

	txID, err := recordTx(ctx, tx, txRecord{
		UserID:      *referrerID,
		Type:        model.TxTypeReferral,
		AmountCents: commission,
		Currency:    currency,
		Status:      model.TxStatusCompleted,
		Related:     &model.RelatedRef{Kind: model.RelatedInvestment, ID: investmentID},
		Meta:        map[string]any{"refereeId": refereeID},
	})
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE referrals
		 SET commission_cents = $2, paid = TRUE, related_tx_id = $3
		 WHERE id = $1`,
		referralID, commission, txID,
	)
	if err != nil {
		return fmt.Errorf("mark referral paid: %w", err)
	}
	return nil
}
