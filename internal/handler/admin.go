package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fecoanthony/pointInvest/internal/model"
)

type adminDepositRequest struct {
	UserID       int64   `json:"userId"`
	AmountCents  int64   `json:"amountCents"`
	Currency     string  `json:"currency,omitempty"`
	Provider     string  `json:"provider"`
	ProviderTxID *string `json:"providerTxId,omitempty"`
}

// AdminDeposit зачисляет депозит на кошелёк пользователя от имени администратора.
func (h *Handler) AdminDeposit(w http.ResponseWriter, r *http.Request) {
	var req adminDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txID, err := h.service.Deposit(r.Context(), req.UserID, req.AmountCents,
		req.Currency, req.Provider, req.ProviderTxID)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", req.UserID))
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"transactionId": txID})
}

// AdminPendingDeposits возвращает криптодепозиты, ожидающие подтверждения.
func (h *Handler) AdminPendingDeposits(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListPendingCryptoDeposits(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// AdminApproveDeposit подтверждает криптодепозит и зачисляет средства.
func (h *Handler) AdminApproveDeposit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ApproveCryptoDeposit(r.Context(), id); err != nil {
		h.writeError(w, err, zap.Int64("txID", id))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type processWithdrawalRequest struct {
	Action       string  `json:"action"`
	ProviderTxID *string `json:"providerTxId,omitempty"`
	FeeCents     int64   `json:"feeCents,omitempty"`
}

// AdminProcessWithdrawal завершает или отклоняет заявку на вывод средств.
func (h *Handler) AdminProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req processWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ProcessWithdrawal(r.Context(), id, req.Action, req.ProviderTxID, req.FeeCents); err != nil {
		h.writeError(w, err, zap.Int64("txID", id), zap.String("action", req.Action))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminListTransactions возвращает страницу транзакций с фильтрами по
// пользователю, типу, статусу и датам.
func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userID *int64
	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		userID = &id
	}

	parseDate := func(name string) (*time.Time, bool) {
		raw := q.Get(name)
		if raw == "" {
			return nil, true
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, false
		}
		return &t, true
	}

	startDate, ok := parseDate("startDate")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	endDate, ok := parseDate("endDate")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	page := queryInt(r, "page")
	txs, total, err := h.service.AdminListTransactions(r.Context(), userID,
		q.Get("type"), q.Get("status"), startDate, endDate, page, queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: txs,
		Page:         max(page, 1),
		Limit:        len(txs),
		Total:        total,
	})
}

// AdminListInvestments возвращает страницу инвестиций с фильтрами по
// пользователю и состоянию.
func (h *Handler) AdminListInvestments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userID *int64
	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		userID = &id
	}

	page := queryInt(r, "page")
	invs, total, err := h.service.AdminListInvestments(r.Context(), userID,
		q.Get("state"), page, queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, investmentsResponse{
		Investments: invs,
		Page:        max(page, 1),
		Limit:       len(invs),
		Total:       total,
	})
}

type toggleInvestmentRequest struct {
	Action string `json:"action"`
}

// AdminToggleInvestment приостанавливает или возобновляет начисления по инвестиции.
func (h *Handler) AdminToggleInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req toggleInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ToggleInvestmentState(r.Context(), id, req.Action); err != nil {
		h.writeError(w, err, zap.Int64("investmentID", id), zap.String("action", req.Action))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminForceCancelInvestment принудительно отменяет инвестицию с возвратом капитала.
func (h *Handler) AdminForceCancelInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.ForceCancelInvestment(r.Context(), id); err != nil {
		h.writeError(w, err, zap.Int64("investmentID", id))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type usersResponse struct {
	Users []model.User `json:"users"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int64        `json:"total"`
}

// AdminListUsers возвращает страницу пользователей с фильтрами по роли и состоянию.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := queryInt(r, "page")

	users, total, err := h.service.AdminListUsers(r.Context(),
		q.Get("role"), q.Get("status"), page, queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, usersResponse{
		Users: users,
		Page:  max(page, 1),
		Limit: len(users),
		Total: total,
	})
}

// AdminGetUser возвращает карточку пользователя: профиль, кошелёк и активность.
func (h *Handler) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	details, err := h.service.AdminGetUser(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("targetUserID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

// AdminToggleUserSuspend приостанавливает или разблокирует пользователя.
func (h *Handler) AdminToggleUserSuspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	suspended, err := h.service.ToggleUserSuspended(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("targetUserID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"suspended": suspended})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// AdminSetUserRole изменяет роль пользователя (только супер-администратор).
func (h *Handler) AdminSetUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetUserRole(r.Context(), id, req.Role); err != nil {
		h.writeError(w, err, zap.Int64("targetUserID", id), zap.String("role", req.Role))
		return
	}
	w.WriteHeader(http.StatusOK)
}

type planRequest struct {
	Slug                   string   `json:"slug"`
	Name                   string   `json:"name"`
	Description            string   `json:"description,omitempty"`
	Rate                   float64  `json:"rate"`
	RateUnit               string   `json:"rateUnit,omitempty"`
	PeriodCount            int      `json:"periodCount"`
	PayoutFrequencySeconds int64    `json:"payoutFrequencySeconds"`
	MinAmountCents         int64    `json:"minAmountCents"`
	MaxAmountCents         int64    `json:"maxAmountCents"`
	CapitalBack            bool     `json:"capitalBack"`
	AutoRenew              bool     `json:"autoRenew"`
	ReferralPercent        *float64 `json:"referralPercent,omitempty"`
	Active                 bool     `json:"active"`
}

func (req *planRequest) toModel() *model.Plan {
	return &model.Plan{
		Slug:                   req.Slug,
		Name:                   req.Name,
		Description:            req.Description,
		Rate:                   req.Rate,
		RateUnit:               model.RateUnit(req.RateUnit),
		PeriodCount:            req.PeriodCount,
		PayoutFrequencySeconds: req.PayoutFrequencySeconds,
		MinAmountCents:         req.MinAmountCents,
		MaxAmountCents:         req.MaxAmountCents,
		CapitalBack:            req.CapitalBack,
		AutoRenew:              req.AutoRenew,
		ReferralPercent:        req.ReferralPercent,
		Active:                 req.Active,
	}
}

// AdminCreatePlan создаёт новый тарифный план.
func (h *Handler) AdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), req.toModel())
	if err != nil {
		h.writeError(w, err, zap.String("slug", req.Slug))
		return
	}
	h.writeJSON(w, http.StatusCreated, plan)
}

// AdminUpdatePlan изменяет условия незаблокированного тарифного плана.
func (h *Handler) AdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	plan := req.toModel()
	plan.ID = id

	updated, err := h.service.UpdatePlan(r.Context(), plan)
	if err != nil {
		h.writeError(w, err, zap.Int64("planID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// AdminTogglePlan включает или выключает тарифный план.
func (h *Handler) AdminTogglePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	active, err := h.service.TogglePlanActive(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("planID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

// AdminListPlans возвращает все тарифные планы, включая выключенные.
func (h *Handler) AdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context(), true)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plans)
}
