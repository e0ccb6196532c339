package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentCents(t *testing.T) {
	tests := []struct {
		name        string
		amountCents int64
		percent     float64
		want        int64
	}{
		{"whole result", 10000, 5, 500},
		{"rounds half up", 1000, 2.55, 26},
		{"rounds down", 1000, 2.54, 25},
		{"zero percent", 10000, 0, 0},
		{"zero amount", 0, 5, 0},
		{"tiny amount rounds to zero", 1, 0.1, 0},
		{"tiny amount rounds to one", 10, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentCents(tt.amountCents, tt.percent))
		})
	}
}

func TestPlanAmountInRange(t *testing.T) {
	p := &Plan{MinAmountCents: 1000, MaxAmountCents: 50000}

	assert.True(t, p.AmountInRange(1000))
	assert.True(t, p.AmountInRange(50000))
	assert.True(t, p.AmountInRange(25000))
	assert.False(t, p.AmountInRange(999))
	assert.False(t, p.AmountInRange(50001))
}

func TestPlanProfit(t *testing.T) {
	p := &Plan{Rate: 1.5, PeriodCount: 30}

	assert.Equal(t, int64(150), p.PerPeriodProfitCents(10000))
	assert.Equal(t, int64(4500), p.ExpectedProfitCents(10000))

	// округление применяется к итогу, а не к каждому периоду
	odd := &Plan{Rate: 0.33, PeriodCount: 7}
	assert.Equal(t, int64(231), odd.ExpectedProfitCents(10000))
	assert.Equal(t, int64(2), odd.ExpectedProfitCents(100))
}

func TestPlanEffectiveReferralPercent(t *testing.T) {
	override := 10.0
	withOverride := &Plan{ReferralPercent: &override}
	withoutOverride := &Plan{}

	assert.Equal(t, 10.0, withOverride.EffectiveReferralPercent(5))
	assert.Equal(t, 5.0, withoutOverride.EffectiveReferralPercent(5))

	zero := 0.0
	disabled := &Plan{ReferralPercent: &zero}
	assert.Equal(t, 0.0, disabled.EffectiveReferralPercent(5))
}

func TestRoleIsAdmin(t *testing.T) {
	assert.False(t, RoleUser.IsAdmin())
	assert.True(t, RoleAdmin.IsAdmin())
	assert.True(t, RoleSuperAdmin.IsAdmin())
}
