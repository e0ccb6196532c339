package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// Примитивы изменения балансов. Все принимают открытую транзакцию —
// кошелёк никогда не изменяется вне атомарной единицы работы, и каждое
// изменение сопровождается записью в журнал транзакций на стороне
// вызывающего кода.

// creditMain зачисляет amountCents на основной баланс, создавая кошелёк
// при первом зачислении. Сумма должна быть положительной — валидация
// на вызывающей стороне.
func creditMain(ctx context.Context, tx pgx.Tx, userID int64, currency string, amountCents int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO wallets (user_id, currency, main_cents)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, currency)
		 DO UPDATE SET main_cents = wallets.main_cents + EXCLUDED.main_cents, updated_at = now()`,
		userID, currency, amountCents,
	)
	if err != nil {
		return fmt.Errorf("credit main balance: %w", err)
	}
	return nil
}

// creditInterest зачисляет amountCents на процентный баланс.
func creditInterest(ctx context.Context, tx pgx.Tx, userID int64, currency string, amountCents int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE wallets
		 SET interest_cents = interest_cents + $3, updated_at = now()
		 WHERE user_id = $1 AND currency = $2`,
		userID, currency, amountCents,
	)
	if err != nil {
		return fmt.Errorf("credit interest balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// debitAndReserve атомарно переносит amountCents из основного баланса в
// зарезервированный. Сумма main+reserved при этом не меняется.
func debitAndReserve(ctx context.Context, tx pgx.Tx, userID int64, currency string, amountCents int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE wallets
		 SET main_cents = main_cents - $3, reserved_cents = reserved_cents + $3, updated_at = now()
		 WHERE user_id = $1 AND currency = $2 AND main_cents >= $3`,
		userID, currency, amountCents,
	)
	if err != nil {
		return fmt.Errorf("debit and reserve: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		if err := walletExists(ctx, tx, userID, currency); err != nil {
			return err
		}
		return ErrInsufficientFunds
	}
	return nil
}

// releaseReservedToMain возвращает amountCents из резерва на основной баланс.
// Предикат reserved_cents >= amount защищает резерв от ухода в минус.
func releaseReservedToMain(ctx context.Context, tx pgx.Tx, userID int64, currency string, amountCents int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE wallets
		 SET reserved_cents = reserved_cents - $3, main_cents = main_cents + $3, updated_at = now()
		 WHERE user_id = $1 AND currency = $2 AND reserved_cents >= $3`,
		userID, currency, amountCents,
	)
	if err != nil {
		return fmt.Errorf("release reserved: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		if err := walletExists(ctx, tx, userID, currency); err != nil {
			return err
		}
		return ErrReservedUnderflow
	}
	return nil
}

// reduceReserved списывает amountCents из резерва безвозвратно —
// средства покидают систему (завершённый вывод, невозвратный капитал).
func reduceReserved(ctx context.Context, tx pgx.Tx, userID int64, currency string, amountCents int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE wallets
		 SET reserved_cents = reserved_cents - $3, updated_at = now()
		 WHERE user_id = $1 AND currency = $2 AND reserved_cents >= $3`,
		userID, currency, amountCents,
	)
	if err != nil {
		return fmt.Errorf("reduce reserved: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		if err := walletExists(ctx, tx, userID, currency); err != nil {
			return err
		}
		return ErrReservedUnderflow
	}
	return nil
}

func walletExists(ctx context.Context, tx pgx.Tx, userID int64, currency string) error {
	var dummy int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM wallets WHERE user_id = $1 AND currency = $2`,
		userID, currency,
	).Scan(&dummy)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWalletNotFound
	}
	if err != nil {
		return fmt.Errorf("check wallet: %w", err)
	}
	return nil
}

// GetWallet возвращает кошелёк пользователя в указанной валюте.
func (r *PostgresRepository) GetWallet(ctx context.Context, userID int64, currency string) (*model.Wallet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, currency, main_cents, reserved_cents, interest_cents, updated_at
		 FROM wallets
		 WHERE user_id = $1 AND currency = $2`,
		userID, currency,
	)

	var w model.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &w.MainCents, &w.ReservedCents, &w.InterestCents, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	return &w, nil
}
