package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// WithdrawalAction задаёт решение администратора по ожидающему выводу.
type WithdrawalAction string

const (
	WithdrawalComplete WithdrawalAction = "complete"
	WithdrawalFail     WithdrawalAction = "fail"
)

// RequestWithdrawal резервирует средства под вывод и создаёт ожидающую
// транзакцию с отрицательной суммой. Средства ещё не покидают систему.
func (r *PostgresRepository) RequestWithdrawal(ctx context.Context, userID, amountCents int64, currency string, destination map[string]any) (int64, error) {
	var txID int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := debitAndReserve(ctx, tx, userID, currency, amountCents); err != nil {
			return err
		}

		var err error
		txID, err = recordTx(ctx, tx, txRecord{
			UserID:      userID,
			Type:        model.TxTypeWithdraw,
			AmountCents: -amountCents,
			Currency:    currency,
			Status:      model.TxStatusPending,
			Meta:        map[string]any{"destination": destination},
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return txID, nil
}

// ProcessWithdrawal завершает ожидающий вывод. Разрешены только переходы
// pending→completed и pending→failed:
//   - complete: резерв списывается безвозвратно, фиксируется комиссия;
//   - fail: резерв полностью возвращается на основной баланс.
func (r *PostgresRepository) ProcessWithdrawal(ctx context.Context, txID int64, action WithdrawalAction, providerTxID *string, feeCents int64) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var (
			userID      int64
			txType      string
			status      string
			amountCents int64
			currency    string
		)
		err := tx.QueryRow(ctx,
			`SELECT user_id, type, status, amount_cents, currency
			 FROM transactions WHERE id = $1 FOR UPDATE`,
			txID,
		).Scan(&userID, &txType, &status, &amountCents, &currency)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("select withdrawal: %w", err)
		}

		if txType != string(model.TxTypeWithdraw) || status != string(model.TxStatusPending) {
			return ErrNotPendingWithdrawal
		}

		reserved := amountCents
		if reserved < 0 {
			reserved = -reserved
		}

		switch action {
		case WithdrawalComplete:
			if err := reduceReserved(ctx, tx, userID, currency, reserved); err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`UPDATE transactions
				 SET status = 'completed', provider_tx_id = $2, fee_cents = $3, updated_at = now()
				 WHERE id = $1`,
				txID, providerTxID, feeCents,
			)
			if err != nil {
				return fmt.Errorf("complete withdrawal: %w", err)
			}

		case WithdrawalFail:
			if err := releaseReservedToMain(ctx, tx, userID, currency, reserved); err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				`UPDATE transactions
				 SET status = 'failed',
				     meta = meta || jsonb_build_object('failureHandledAt', now()),
				     updated_at = now()
				 WHERE id = $1`,
				txID,
			)
			if err != nil {
				return fmt.Errorf("fail withdrawal: %w", err)
			}

		default:
			return fmt.Errorf("unknown withdrawal action %q", action)
		}

		return nil
	})
}
