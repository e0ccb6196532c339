package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

const cryptoProvider = "crypto-manual"

// CreateDeposit зачисляет депозит: завершённая транзакция журнала и
// кредит основного баланса в одной единице работы.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, userID, amountCents int64, currency string, provider string, providerTxID *string) (int64, error) {
	var txID int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		txID, err = recordTx(ctx, tx, txRecord{
			UserID:       userID,
			Type:         model.TxTypeDeposit,
			AmountCents:  amountCents,
			Currency:     currency,
			Status:       model.TxStatusCompleted,
			Provider:     &provider,
			ProviderTxID: providerTxID,
		})
		if err != nil {
			return err
		}
		return creditMain(ctx, tx, userID, currency, amountCents)
	})
	if err != nil {
		return 0, err
	}
	return txID, nil
}

// CreateCryptoDeposit создаёт ожидающий депозит без зачисления средств.
// Кредит происходит только при подтверждении администратором.
func (r *PostgresRepository) CreateCryptoDeposit(ctx context.Context, userID, amountCents int64, currency, walletAddress string) (int64, error) {
	provider := cryptoProvider
	meta, err := json.Marshal(map[string]any{"walletAddress": walletAddress})
	if err != nil {
		return 0, fmt.Errorf("marshal deposit meta: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount_cents, currency, status, provider, meta)
		 VALUES ($1, 'deposit', $2, $3, 'pending', $4, $5)
		 RETURNING id`,
		userID, amountCents, currency, provider, meta,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert crypto deposit: %w", err)
	}
	return id, nil
}

// ListPendingCryptoDeposits возвращает криптодепозиты, ожидающие подтверждения.
func (r *PostgresRepository) ListPendingCryptoDeposits(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txColumns+`
		 FROM transactions
		 WHERE type = 'deposit' AND provider = $1 AND status = 'pending'
		 ORDER BY created_at`,
		cryptoProvider,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending deposits: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending deposit: %w", err)
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ApproveCryptoDeposit переводит ожидающий депозит в completed и зачисляет
// средства. Зачисление происходит исключительно в момент подтверждения.
func (r *PostgresRepository) ApproveCryptoDeposit(ctx context.Context, txID int64) error {
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
			return fmt.Errorf("select deposit: %w", err)
		}

		if txType != string(model.TxTypeDeposit) || status != string(model.TxStatusPending) {
			return ErrNotPendingDeposit
		}

		_, err = tx.Exec(ctx,
			`UPDATE transactions SET status = 'completed', updated_at = now() WHERE id = $1`,
			txID,
		)
		if err != nil {
			return fmt.Errorf("update deposit: %w", err)
		}

		return creditMain(ctx, tx, userID, currency, amountCents)
	})
}
