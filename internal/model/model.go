// Package model содержит доменные сущности инвестиционной платформы.
package model

import (
	"math"
	"time"
)

// Role определяет уровень доступа пользователя.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// IsAdmin сообщает, имеет ли роль административные права.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Role         Role      `json:"role"`
	Suspended    bool      `json:"suspended"`
	ReferralCode string    `json:"referralCode"`
	ReferredBy   *int64    `json:"referredBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserDetails — административная карточка пользователя: профиль,
// кошелёк и сводка активности.
type UserDetails struct {
	User               User          `json:"user"`
	Wallet             *Wallet       `json:"wallet,omitempty"`
	InvestmentsCount   int64         `json:"investmentsCount"`
	RecentTransactions []Transaction `json:"recentTransactions"`
}

// Wallet хранит балансы пользователя в минимальных денежных единицах.
// Средства в reservedCents заблокированы активными инвестициями
// или ожидающими выводами.
type Wallet struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Currency      string    `json:"currency"`
	MainCents     int64     `json:"mainCents"`
	ReservedCents int64     `json:"reservedCents"`
	InterestCents int64     `json:"interestCents"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TxType описывает тип операции в журнале транзакций.
type TxType string

const (
	TxTypeDeposit    TxType = "deposit"
	TxTypeWithdraw   TxType = "withdraw"
	TxTypePayout     TxType = "payout"
	TxTypeFee        TxType = "fee"
	TxTypeReferral   TxType = "referral"
	TxTypeAdjustment TxType = "adjustment"
)

// TxStatus описывает статус транзакции.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusRejected  TxStatus = "rejected"
)

// RelatedKind задаёт тип объекта, на который ссылается транзакция.
type RelatedKind string

const (
	RelatedInvestment RelatedKind = "investment"
	RelatedPlan       RelatedKind = "plan"
	RelatedUser       RelatedKind = "user"
)

// RelatedRef — типизированная ссылка транзакции на связанный объект.
type RelatedRef struct {
	Kind RelatedKind `json:"kind"`
	ID   int64       `json:"id"`
}

// Transaction — неизменяемая запись журнала о движении средств.
// Знак amountCents: положительный — зачисление пользователю,
// отрицательный — списание, независимо от типа.
type Transaction struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"userId"`
	Type         TxType         `json:"type"`
	Provider     *string        `json:"provider,omitempty"`
	ProviderTxID *string        `json:"providerTxId,omitempty"`
	AmountCents  int64          `json:"amountCents"`
	Currency     string         `json:"currency"`
	FeeCents     int64          `json:"feeCents"`
	Status       TxStatus       `json:"status"`
	Related      *RelatedRef    `json:"related,omitempty"`
	Meta         map[string]any `json:"meta,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// RateUnit задаёт период начисления ставки тарифного плана.
type RateUnit string

const (
	RateUnitHour     RateUnit = "hour"
	RateUnitDay      RateUnit = "day"
	RateUnitWeek     RateUnit = "week"
	RateUnitMonth    RateUnit = "month"
	RateUnitLifetime RateUnit = "lifetime"
)

// Plan — шаблон инвестиционного продукта. После первой инвестиции план
// блокируется: экономические условия становятся неизменяемыми,
// разрешается только переключение active.
type Plan struct {
	ID                     int64     `json:"id"`
	Name                   string    `json:"name"`
	Slug                   string    `json:"slug"`
	Description            string    `json:"description"`
	Rate                   float64   `json:"rate"`
	RateUnit               RateUnit  `json:"rateUnit"`
	PeriodCount            int       `json:"periodCount"`
	PayoutFrequencySeconds int64     `json:"payoutFrequencySeconds"`
	MinAmountCents         int64     `json:"minAmountCents"`
	MaxAmountCents         int64     `json:"maxAmountCents"`
	CapitalBack            bool      `json:"capitalBack"`
	AutoRenew              bool      `json:"autoRenew"`
	ReferralPercent        *float64  `json:"referralPercent,omitempty"`
	Locked                 bool      `json:"locked"`
	Active                 bool      `json:"active"`
	CreatedAt              time.Time `json:"createdAt"`
}

// AmountInRange проверяет, что сумма инвестиции укладывается в лимиты плана.
func (p *Plan) AmountInRange(amountCents int64) bool {
	return amountCents >= p.MinAmountCents && amountCents <= p.MaxAmountCents
}

// PerPeriodProfitCents возвращает прибыль за один период выплат.
func (p *Plan) PerPeriodProfitCents(amountCents int64) int64 {
	return PercentCents(amountCents, p.Rate)
}

// ExpectedProfitCents возвращает суммарную ожидаемую прибыль за все периоды.
func (p *Plan) ExpectedProfitCents(amountCents int64) int64 {
	return int64(math.Round(float64(amountCents) * p.Rate * float64(p.PeriodCount) / 100))
}

// EffectiveReferralPercent возвращает реферальный процент плана
// либо переданное значение по умолчанию.
func (p *Plan) EffectiveReferralPercent(defaultPercent float64) float64 {
	if p.ReferralPercent != nil {
		return *p.ReferralPercent
	}
	return defaultPercent
}

// InvestmentState описывает состояние инвестиции.
type InvestmentState string

const (
	InvestmentActive    InvestmentState = "active"
	InvestmentPaused    InvestmentState = "paused"
	InvestmentCompleted InvestmentState = "completed"
	InvestmentCancelled InvestmentState = "cancelled"
)

// Investment представляет капитал, размещённый в тарифном плане.
// Сумма amountCents зарезервирована в кошельке на весь срок инвестиции.
type Investment struct {
	ID                       int64           `json:"id"`
	UserID                   int64           `json:"userId"`
	PlanID                   int64           `json:"planId"`
	PlanName                 string          `json:"planName,omitempty"`
	PlanRate                 float64         `json:"planRate,omitempty"`
	AmountCents              int64           `json:"amountCents"`
	StartAt                  time.Time       `json:"startAt"`
	NextPayoutAt             time.Time       `json:"nextPayoutAt"`
	PaymentsCompleted        int             `json:"paymentsCompleted"`
	TotalExpectedProfitCents int64           `json:"totalExpectedProfitCents"`
	State                    InvestmentState `json:"state"`
	CreatedAt                time.Time       `json:"createdAt"`
}

// Referral фиксирует комиссию за привлечённого пользователя.
// Пара (referrerId, refereeId) уникальна; после paid=true запись
// больше не изменяется.
type Referral struct {
	ID              int64     `json:"id"`
	ReferrerID      int64     `json:"referrerId"`
	RefereeID       int64     `json:"refereeId"`
	Level           int       `json:"level"`
	CommissionCents int64     `json:"commissionCents"`
	Paid            bool      `json:"paid"`
	RelatedTxID     *int64    `json:"relatedTxId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DashboardSummary агрегирует показатели для личного кабинета пользователя.
type DashboardSummary struct {
	MainCents          int64         `json:"mainCents"`
	ReservedCents      int64         `json:"reservedCents"`
	InterestCents      int64         `json:"interestCents"`
	TotalDepositCents  int64         `json:"totalDepositCents"`
	TotalInvestCents   int64         `json:"totalInvestCents"`
	TotalPayoutCents   int64         `json:"totalPayoutCents"`
	ReferralBonusCents int64         `json:"referralBonusCents"`
	TotalTransactions  int64         `json:"totalTransactions"`
	RecentTransactions []Transaction `json:"recentTransactions"`
	ActiveInvestments  []Investment  `json:"activeInvestments"`
}

// PercentCents вычисляет процент от суммы с округлением до ближайшей
// минимальной единицы.
func PercentCents(amountCents int64, percent float64) int64 {
	return int64(math.Round(float64(amountCents) * percent / 100))
}
