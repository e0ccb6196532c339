// Package handler содержит HTTP-обработчики API платформы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fecoanthony/pointInvest/internal/middleware"
	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
	"github.com/fecoanthony/pointInvest/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, name, email, password, referralCode string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, *model.Wallet, error)

	AdminListUsers(ctx context.Context, role, status string, page, limit int) ([]model.User, int64, error)
	AdminGetUser(ctx context.Context, userID int64) (*model.UserDetails, error)
	ToggleUserSuspended(ctx context.Context, userID int64) (bool, error)
	SetUserRole(ctx context.Context, userID int64, role string) error

	Deposit(ctx context.Context, userID, amountCents int64, currency, provider string, providerTxID *string) (int64, error)
	CreateCryptoDeposit(ctx context.Context, userID, amountCents int64) (*model.Transaction, error)
	ListPendingCryptoDeposits(ctx context.Context) ([]model.Transaction, error)
	ApproveCryptoDeposit(ctx context.Context, txID int64) error

	RequestWithdrawal(ctx context.Context, userID, amountCents int64, destination map[string]any) (int64, error)
	ProcessWithdrawal(ctx context.Context, txID int64, action string, providerTxID *string, feeCents int64) error

	GetBalance(ctx context.Context, userID int64) (*model.Wallet, error)
	GetDashboard(ctx context.Context, userID int64) (*model.DashboardSummary, error)
	GetTransaction(ctx context.Context, id, requesterID int64, requesterRole model.Role) (*model.Transaction, error)
	ListUserTransactions(ctx context.Context, userID int64, txType string, page, limit int) ([]model.Transaction, int64, error)
	AdminListTransactions(ctx context.Context, userID *int64, txType, status string, startDate, endDate *time.Time, page, limit int) ([]model.Transaction, int64, error)

	CreateInvestment(ctx context.Context, userID, planID, amountCents int64) (*model.Investment, error)
	CancelInvestment(ctx context.Context, userID, investmentID int64) error
	ForceCancelInvestment(ctx context.Context, investmentID int64) error
	ToggleInvestmentState(ctx context.Context, investmentID int64, action string) error
	ListUserInvestments(ctx context.Context, userID int64, page, limit int) ([]model.Investment, int64, error)
	AdminListInvestments(ctx context.Context, userID *int64, state string, page, limit int) ([]model.Investment, int64, error)

	CreatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error)
	UpdatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error)
	TogglePlanActive(ctx context.Context, id int64) (bool, error)
	GetPlan(ctx context.Context, id int64) (*model.Plan, error)
	ListPlans(ctx context.Context, includeInactive bool) ([]model.Plan, error)
}

// Handler реализует HTTP-обработчики API платформы.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// writeError переводит ошибки ядра в HTTP-статусы. Системные сбои
// логируются и возвращаются обезличенно.
func (h *Handler) writeError(w http.ResponseWriter, err error, fields ...zap.Field) {
	var status int
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, repository.ErrAmountOutOfRange),
		errors.Is(err, repository.ErrPlanInactive):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, repository.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrUserSuspended),
		errors.Is(err, repository.ErrInvestmentNotOwned),
		errors.Is(err, repository.ErrPlanLocked):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrWalletNotFound),
		errors.Is(err, repository.ErrPlanNotFound),
		errors.Is(err, repository.ErrInvestmentNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrEmailTaken),
		errors.Is(err, repository.ErrSlugTaken),
		errors.Is(err, repository.ErrNotPendingWithdrawal),
		errors.Is(err, repository.ErrNotPendingDeposit),
		errors.Is(err, repository.ErrInvestmentNotActive),
		errors.Is(err, repository.ErrInvestmentCompleted),
		errors.Is(err, repository.ErrPayoutsStarted):
		status = http.StatusConflict
	default:
		h.logger.Error("internal error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.Error(w, err.Error(), status)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

type registerRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, req.ReferralCode)
	if err != nil {
		h.writeError(w, err, zap.String("email", req.Email))
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, user.ID, user.Role); err != nil {
		h.logger.Error("set auth cookie", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err, zap.String("email", req.Email))
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, user.ID, user.Role); err != nil {
		h.logger.Error("set auth cookie", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
