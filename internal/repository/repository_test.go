package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/fecoanthony/pointInvest/internal/model"
)

func newMockRepo(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	t.Cleanup(mock.Close)

	return &PostgresRepository{pool: mock}, mock
}

func planRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "slug", "description", "rate", "rate_unit", "period_count",
		"payout_frequency_seconds", "min_amount_cents", "max_amount_cents", "capital_back",
		"auto_renew", "referral_percent", "locked", "active", "created_at",
	}).AddRow(
		int64(2), "Starter", "starter", "", 1.5, model.RateUnitDay, 30,
		int64(86400), int64(1000), int64(100000), true,
		false, nil, false, true, now,
	)
}

func investmentRow(now time.Time, state model.InvestmentState, payments int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "plan_id", "amount_cents", "start_at", "next_payout_at",
		"payments_completed", "total_expected_profit_cents", "state", "created_at",
	}).AddRow(
		int64(11), int64(1), int64(2), int64(5000), now, now.Add(24*time.Hour),
		payments, int64(2250), state, now,
	)
}

// Депозит, инвестиция и отмена двигают ровно одну и ту же сумму:
// зачисление, резервирование и возврат — все на 5000.
func TestDepositInvestCancel_MovesExactAmounts(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Now()

	// депозит: запись в журнал + кредит основного баланса
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(int64(1), "deposit", int64(5000), "USD", int64(0), "completed",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectExec(`INSERT INTO wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	if _, err := repo.CreateDeposit(ctx, 1, 5000, "USD", "manual", nil); err != nil {
		t.Fatalf("CreateDeposit error: %v", err)
	}

	// инвестиция: резервирование той же суммы + блокировка плана
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM plans WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(2)).
		WillReturnRows(planRow(now))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO investments`).
		WithArgs(int64(1), int64(2), int64(5000), pgxmock.AnyArg(), pgxmock.AnyArg(),
			int64(2250), "active").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(int64(1), "adjustment", int64(-5000), "USD", int64(0), "completed",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectExec(`UPDATE plans SET locked`).
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT referred_by FROM users`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"referred_by"}).AddRow(nil))
	mock.ExpectCommit()

	inv, err := repo.CreateInvestment(ctx, 1, 2, 5000, "USD", 5, now)
	if err != nil {
		t.Fatalf("CreateInvestment error: %v", err)
	}
	if inv.TotalExpectedProfitCents != 2250 {
		t.Fatalf("expected profit = %d, want 2250", inv.TotalExpectedProfitCents)
	}

	// отмена до первой выплаты: резерв возвращается полностью
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM investments WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(11)).
		WillReturnRows(investmentRow(now, model.InvestmentActive, 0))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE investments SET state = 'cancelled'`).
		WithArgs(int64(11)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(int64(1), "adjustment", int64(5000), "USD", int64(0), "completed",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectCommit()

	if err := repo.CancelInvestment(ctx, 1, 11, "USD"); err != nil {
		t.Fatalf("CancelInvestment error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Повторная инвестиция приглашённого не выплачивает комиссию второй раз:
// запись с paid=true закрыта, кошелёк пригласившего не трогается.
func TestCreateInvestment_PaidReferralNotRepaid(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()
	now := time.Now()
	referrer := int64(9)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM plans WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(2)).
		WillReturnRows(planRow(now))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO investments`).
		WithArgs(int64(1), int64(2), int64(5000), pgxmock.AnyArg(), pgxmock.AnyArg(),
			int64(2250), "active").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(12), now))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(int64(1), "adjustment", int64(-5000), "USD", int64(0), "completed",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectExec(`UPDATE plans SET locked`).
		WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT referred_by FROM users`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"referred_by"}).AddRow(&referrer))
	mock.ExpectExec(`INSERT INTO referrals`).
		WithArgs(referrer, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT id, paid FROM referrals`).
		WithArgs(referrer, int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "paid"}).AddRow(int64(3), true))
	// никаких зачислений пригласившему и referral-транзакций дальше
	mock.ExpectCommit()

	if _, err := repo.CreateInvestment(ctx, 1, 2, 5000, "USD", 5, now); err != nil {
		t.Fatalf("CreateInvestment error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Обработка неожидающего вывода отклоняется до любого движения средств.
func TestProcessWithdrawal_RejectsNonPending(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "type", "status", "amount_cents", "currency"}).
			AddRow(int64(1), "withdraw", "completed", int64(-5000), "USD"))
	mock.ExpectRollback()

	err := repo.ProcessWithdrawal(context.Background(), 5, WithdrawalComplete, nil, 0)
	if !errors.Is(err, ErrNotPendingWithdrawal) {
		t.Fatalf("expected ErrNotPendingWithdrawal, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Депозитная транзакция не проходит как вывод.
func TestProcessWithdrawal_RejectsWrongType(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(6)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "type", "status", "amount_cents", "currency"}).
			AddRow(int64(1), "deposit", "pending", int64(5000), "USD"))
	mock.ExpectRollback()

	err := repo.ProcessWithdrawal(context.Background(), 6, WithdrawalFail, nil, 0)
	if !errors.Is(err, ErrNotPendingWithdrawal) {
		t.Fatalf("expected ErrNotPendingWithdrawal, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Отклонённый вывод возвращает в точности зарезервированную сумму.
func TestProcessWithdrawal_FailReturnsReserve(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "type", "status", "amount_cents", "currency"}).
			AddRow(int64(1), "withdraw", "pending", int64(-5000), "USD"))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE transactions`).
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := repo.ProcessWithdrawal(context.Background(), 7, WithdrawalFail, nil, 0); err != nil {
		t.Fatalf("ProcessWithdrawal error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Списание сверх доступного баланса не проходит: защитный предикат
// не находит строку, запись в журнал не создаётся.
func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(99999)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM wallets`).
		WithArgs(int64(1), "USD").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.RequestWithdrawal(context.Background(), 1, 99999, "USD", nil)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Возврат из резерва больше зарезервированного — ошибка вызывающего кода,
// единица работы откатывается целиком.
func TestProcessWithdrawal_ReservedUnderflow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(8)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "type", "status", "amount_cents", "currency"}).
			AddRow(int64(1), "withdraw", "pending", int64(-5000), "USD"))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs(int64(1), "USD", int64(5000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT 1 FROM wallets`).
		WithArgs(int64(1), "USD").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.ProcessWithdrawal(context.Background(), 8, WithdrawalFail, nil, 0)
	if !errors.Is(err, ErrReservedUnderflow) {
		t.Fatalf("expected ErrReservedUnderflow, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestToggleUserSuspended(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`UPDATE users SET suspended = NOT suspended`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"suspended"}).AddRow(true))

	suspended, err := repo.ToggleUserSuspended(context.Background(), 4)
	if err != nil {
		t.Fatalf("ToggleUserSuspended error: %v", err)
	}
	if !suspended {
		t.Fatalf("suspended = false, want true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
