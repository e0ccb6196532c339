package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fecoanthony/pointInvest/internal/model"
)

// txRecord описывает добавляемую запись журнала транзакций.
type txRecord struct {
	UserID       int64
	Type         model.TxType
	AmountCents  int64
	Currency     string
	FeeCents     int64
	Status       model.TxStatus
	Provider     *string
	ProviderTxID *string
	Related      *model.RelatedRef
	Meta         map[string]any
}

// recordTx добавляет запись в журнал. Вызывается только внутри той же
// транзакции БД, что и изменение кошелька, которое она документирует.
func recordTx(ctx context.Context, tx pgx.Tx, rec txRecord) (int64, error) {
	meta := rec.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal tx meta: %w", err)
	}

	var relatedKind *string
	var relatedID *int64
	if rec.Related != nil {
		k := string(rec.Related.Kind)
		relatedKind = &k
		relatedID = &rec.Related.ID
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions
		 (user_id, type, amount_cents, currency, fee_cents, status, provider, provider_tx_id, related_kind, related_id, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		rec.UserID, string(rec.Type), rec.AmountCents, rec.Currency, rec.FeeCents,
		string(rec.Status), rec.Provider, rec.ProviderTxID, relatedKind, relatedID, metaJSON,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

const txColumns = `id, user_id, type, amount_cents, currency, fee_cents, status,
	 provider, provider_tx_id, related_kind, related_id, meta, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t           model.Transaction
		relatedKind *string
		relatedID   *int64
		metaJSON    []byte
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountCents, &t.Currency, &t.FeeCents,
		&t.Status, &t.Provider, &t.ProviderTxID, &relatedKind, &relatedID, &metaJSON,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if relatedKind != nil && relatedID != nil {
		t.Related = &model.RelatedRef{Kind: model.RelatedKind(*relatedKind), ID: *relatedID}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal tx meta: %w", err)
		}
	}
	return &t, nil
}

// GetTransaction возвращает транзакцию по идентификатору.
func (r *PostgresRepository) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TxFilter задаёт условия выборки транзакций.
type TxFilter struct {
	UserID    *int64
	Type      model.TxType
	Status    model.TxStatus
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// ListTransactions возвращает страницу транзакций по фильтру и общее число записей.
func (r *PostgresRepository) ListTransactions(ctx context.Context, f TxFilter) ([]model.Transaction, int64, error) {
	where := `TRUE`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		where += ` AND user_id = ` + arg(*f.UserID)
	}
	if f.Type != "" {
		where += ` AND type = ` + arg(string(f.Type))
	}
	if f.Status != "" {
		where += ` AND status = ` + arg(string(f.Status))
	}
	if f.StartDate != nil {
		where += ` AND created_at >= ` + arg(*f.StartDate)
	}
	if f.EndDate != nil {
		where += ` AND created_at <= ` + arg(*f.EndDate)
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + where +
		` ORDER BY created_at DESC, id DESC` +
		` LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg((f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// DashboardSummary собирает агрегаты по кошельку, транзакциям и инвестициям пользователя.
func (r *PostgresRepository) DashboardSummary(ctx context.Context, userID int64, currency string) (*model.DashboardSummary, error) {
	var s model.DashboardSummary

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(main_cents, 0), COALESCE(reserved_cents, 0), COALESCE(interest_cents, 0)
		 FROM wallets WHERE user_id = $1 AND currency = $2`,
		userID, currency,
	).Scan(&s.MainCents, &s.ReservedCents, &s.InterestCents)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("summary wallet: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
		   COALESCE(SUM(amount_cents) FILTER (WHERE type = 'deposit' AND status = 'completed'), 0),
		   COALESCE(SUM(amount_cents) FILTER (WHERE type = 'payout' AND status = 'completed'), 0),
		   COALESCE(SUM(amount_cents) FILTER (WHERE type = 'referral' AND status = 'completed'), 0),
		   COUNT(*)
		 FROM transactions WHERE user_id = $1`,
		userID,
	).Scan(&s.TotalDepositCents, &s.TotalPayoutCents, &s.ReferralBonusCents, &s.TotalTransactions)
	if err != nil {
		return nil, fmt.Errorf("summary transactions: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM investments WHERE user_id = $1`,
		userID,
	).Scan(&s.TotalInvestCents)
	if err != nil {
		return nil, fmt.Errorf("summary investments: %w", err)
	}

	recent, _, err := r.ListTransactions(ctx, TxFilter{UserID: &userID, Page: 1, Limit: 5})
	if err != nil {
		return nil, err
	}
	s.RecentTransactions = recent

	active, _, err := r.ListInvestments(ctx, InvFilter{
		UserID: &userID,
		State:  model.InvestmentActive,
		Page:   1,
		Limit:  5,
	})
	if err != nil {
		return nil, err
	}
	s.ActiveInvestments = active

	return &s, nil
}
