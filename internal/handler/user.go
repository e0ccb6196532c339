package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fecoanthony/pointInvest/internal/middleware"
	"github.com/fecoanthony/pointInvest/internal/model"
)

// GetDashboard возвращает сводку личного кабинета текущего пользователя.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	summary, err := h.service.GetDashboard(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

type profileResponse struct {
	User   *model.User   `json:"user"`
	Wallet *model.Wallet `json:"wallet"`
}

// GetProfile возвращает профиль текущего пользователя с кошельком.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	user, wallet, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, profileResponse{User: user, Wallet: wallet})
}

// GetBalance возвращает балансы кошелька текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	wallet, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, wallet)
}

type transactionsResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Page         int                 `json:"page"`
	Limit        int                 `json:"limit"`
	Total        int64               `json:"total"`
}

// GetTransactions возвращает страницу транзакций текущего пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	txs, total, err := h.service.ListUserTransactions(r.Context(), userID,
		r.URL.Query().Get("type"), page, limit)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: txs,
		Page:         max(page, 1),
		Limit:        len(txs),
		Total:        total,
	})
}

// GetTransaction возвращает одну транзакцию; чужие доступны только администраторам.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id, userID, role)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID), zap.Int64("txID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

type cryptoDepositRequest struct {
	AmountCents int64 `json:"amountCents"`
}

// CreateCryptoDeposit создаёт заявку на криптодепозит текущего пользователя.
func (h *Handler) CreateCryptoDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req cryptoDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tx, err := h.service.CreateCryptoDeposit(r.Context(), userID, req.AmountCents)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

type withdrawalRequest struct {
	AmountCents int64          `json:"amountCents"`
	Destination map[string]any `json:"destination,omitempty"`
}

// RequestWithdrawal создаёт заявку на вывод средств текущего пользователя.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txID, err := h.service.RequestWithdrawal(r.Context(), userID, req.AmountCents, req.Destination)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]int64{"transactionId": txID})
}

type investmentsResponse struct {
	Investments []model.Investment `json:"investments"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	Total       int64              `json:"total"`
}

// GetInvestments возвращает страницу инвестиций текущего пользователя.
func (h *Handler) GetInvestments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page")

	invs, total, err := h.service.ListUserInvestments(r.Context(), userID, page, queryInt(r, "limit"))
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, investmentsResponse{
		Investments: invs,
		Page:        max(page, 1),
		Limit:       len(invs),
		Total:       total,
	})
}

type createInvestmentRequest struct {
	PlanID      int64 `json:"planId"`
	AmountCents int64 `json:"amountCents"`
}

// CreateInvestment размещает средства текущего пользователя в плане.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.CreateInvestment(r.Context(), userID, req.PlanID, req.AmountCents)
	if err != nil {
		h.writeError(w, err, zap.Int64("userID", userID), zap.Int64("planID", req.PlanID))
		return
	}
	h.writeJSON(w, http.StatusCreated, inv)
}

// CancelInvestment отменяет собственную инвестицию текущего пользователя.
func (h *Handler) CancelInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.CancelInvestment(r.Context(), userID, id); err != nil {
		h.writeError(w, err, zap.Int64("userID", userID), zap.Int64("investmentID", id))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetPlans возвращает активные тарифные планы.
func (h *Handler) GetPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context(), false)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plans)
}

// GetPlan возвращает один тарифный план.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		h.writeError(w, err, zap.Int64("planID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}
