package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fecoanthony/pointInvest/internal/middleware"
	"github.com/fecoanthony/pointInvest/internal/model"
	"github.com/fecoanthony/pointInvest/internal/repository"
	"github.com/fecoanthony/pointInvest/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	authUser *model.User
	authErr  error

	depositTxID int64
	depositErr  error

	cryptoTx  *model.Transaction
	cryptoErr error

	pendingDeposits []model.Transaction
	approveErr      error

	withdrawTxID int64
	withdrawErr  error
	processErr   error

	wallet     *model.Wallet
	walletErr  error
	summary    *model.DashboardSummary
	summaryErr error

	transaction    *model.Transaction
	transactionErr error
	transactions   []model.Transaction
	txTotal        int64
	txErr          error

	investment      *model.Investment
	investmentErr   error
	cancelErr       error
	forceCancelErr  error
	toggleErr       error
	investments     []model.Investment
	invTotal        int64
	investmentsErr  error

	plan       *model.Plan
	planErr    error
	planActive bool
	plans      []model.Plan
	plansErr   error

	profileUser   *model.User
	profileWallet *model.Wallet
	profileErr    error
	users         []model.User
	usersTotal    int64
	usersErr      error
	userDetails   *model.UserDetails
	userErr       error
	suspended     bool
	suspendErr    error
	setRoleErr    error
}

func (s *stubService) Register(ctx context.Context, name, email, password, referralCode string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) Deposit(ctx context.Context, userID, amountCents int64, currency, provider string, providerTxID *string) (int64, error) {
	return s.depositTxID, s.depositErr
}

func (s *stubService) CreateCryptoDeposit(ctx context.Context, userID, amountCents int64) (*model.Transaction, error) {
	return s.cryptoTx, s.cryptoErr
}

func (s *stubService) ListPendingCryptoDeposits(ctx context.Context) ([]model.Transaction, error) {
	return s.pendingDeposits, nil
}

func (s *stubService) ApproveCryptoDeposit(ctx context.Context, txID int64) error {
	return s.approveErr
}

func (s *stubService) RequestWithdrawal(ctx context.Context, userID, amountCents int64, destination map[string]any) (int64, error) {
	return s.withdrawTxID, s.withdrawErr
}

func (s *stubService) ProcessWithdrawal(ctx context.Context, txID int64, action string, providerTxID *string, feeCents int64) error {
	return s.processErr
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.wallet, s.walletErr
}

func (s *stubService) GetDashboard(ctx context.Context, userID int64) (*model.DashboardSummary, error) {
	return s.summary, s.summaryErr
}

func (s *stubService) GetTransaction(ctx context.Context, id, requesterID int64, requesterRole model.Role) (*model.Transaction, error) {
	return s.transaction, s.transactionErr
}

func (s *stubService) ListUserTransactions(ctx context.Context, userID int64, txType string, page, limit int) ([]model.Transaction, int64, error) {
	return s.transactions, s.txTotal, s.txErr
}

func (s *stubService) AdminListTransactions(ctx context.Context, userID *int64, txType, status string, startDate, endDate *time.Time, page, limit int) ([]model.Transaction, int64, error) {
	return s.transactions, s.txTotal, s.txErr
}

func (s *stubService) CreateInvestment(ctx context.Context, userID, planID, amountCents int64) (*model.Investment, error) {
	return s.investment, s.investmentErr
}

func (s *stubService) CancelInvestment(ctx context.Context, userID, investmentID int64) error {
	return s.cancelErr
}

func (s *stubService) ForceCancelInvestment(ctx context.Context, investmentID int64) error {
	return s.forceCancelErr
}

func (s *stubService) ToggleInvestmentState(ctx context.Context, investmentID int64, action string) error {
	return s.toggleErr
}

func (s *stubService) ListUserInvestments(ctx context.Context, userID int64, page, limit int) ([]model.Investment, int64, error) {
	return s.investments, s.invTotal, s.investmentsErr
}

func (s *stubService) AdminListInvestments(ctx context.Context, userID *int64, state string, page, limit int) ([]model.Investment, int64, error) {
	return s.investments, s.invTotal, s.investmentsErr
}

func (s *stubService) CreatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error) {
	return s.plan, s.planErr
}

func (s *stubService) UpdatePlan(ctx context.Context, p *model.Plan) (*model.Plan, error) {
	return s.plan, s.planErr
}

func (s *stubService) TogglePlanActive(ctx context.Context, id int64) (bool, error) {
	return s.planActive, s.planErr
}

func (s *stubService) GetPlan(ctx context.Context, id int64) (*model.Plan, error) {
	return s.plan, s.planErr
}

func (s *stubService) ListPlans(ctx context.Context, includeInactive bool) ([]model.Plan, error) {
	return s.plans, s.plansErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*model.User, *model.Wallet, error) {
	return s.profileUser, s.profileWallet, s.profileErr
}

func (s *stubService) AdminListUsers(ctx context.Context, role, status string, page, limit int) ([]model.User, int64, error) {
	return s.users, s.usersTotal, s.usersErr
}

func (s *stubService) AdminGetUser(ctx context.Context, userID int64) (*model.UserDetails, error) {
	return s.userDetails, s.userErr
}

func (s *stubService) ToggleUserSuspended(ctx context.Context, userID int64) (bool, error) {
	return s.suspended, s.suspendErr
}

func (s *stubService) SetUserRole(ctx context.Context, userID int64, role string) error {
	return s.setRoleErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger := zap.NewNop()
	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authedRequest(t *testing.T, h *Handler, method, target string, body []byte, role model.Role) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	if err := h.authMiddleware.SetAuthCookie(rec, 1, role); err != nil {
		t.Fatalf("set auth cookie: %v", err)
	}
	req.AddCookie(rec.Result().Cookies()[0])

	return req
}

func serveWithAuth(h *Handler, endpoint http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.authMiddleware.Middleware(endpoint).ServeHTTP(rec, req)
	return rec
}

func TestRegister_Created(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Email: "a@b.c", Role: model.RoleUser},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Name:     "Alice",
		Email:    "a@b.c",
		Password: "password123",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("register must set auth cookie")
	}
}

func TestRegister_ConflictOnDuplicateEmail(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrEmailTaken}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{Name: "A", Email: "a@b.c", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnBadCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "a@b.c", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestLogin_ForbiddenWhenSuspended(t *testing.T) {
	svc := &stubService{authErr: service.ErrUserSuspended}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "a@b.c", Password: "correct"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestGetBalance_Unauthorized(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
	rec := httptest.NewRecorder()

	h.authMiddleware.Middleware(http.HandlerFunc(h.GetBalance)).ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetBalance_JSONResponse(t *testing.T) {
	svc := &stubService{
		wallet: &model.Wallet{UserID: 1, Currency: "USD", MainCents: 12345},
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/balance", nil, model.RoleUser)
	rec := serveWithAuth(h, h.GetBalance, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var w model.Wallet
	if err := json.NewDecoder(res.Body).Decode(&w); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if w.MainCents != 12345 {
		t.Fatalf("mainCents = %d, want 12345", w.MainCents)
	}
}

func TestCreateInvestment_PaymentRequiredOnInsufficientFunds(t *testing.T) {
	svc := &stubService{investmentErr: repository.ErrInsufficientFunds}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createInvestmentRequest{PlanID: 1, AmountCents: 100000})
	req := authedRequest(t, h, http.MethodPost, "/api/user/investments", body, model.RoleUser)
	rec := serveWithAuth(h, h.CreateInvestment, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
}

func TestCreateInvestment_BadRequestOnAmountOutOfRange(t *testing.T) {
	svc := &stubService{investmentErr: repository.ErrAmountOutOfRange}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(createInvestmentRequest{PlanID: 1, AmountCents: 1})
	req := authedRequest(t, h, http.MethodPost, "/api/user/investments", body, model.RoleUser)
	rec := serveWithAuth(h, h.CreateInvestment, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRequestWithdrawal_Created(t *testing.T) {
	svc := &stubService{withdrawTxID: 77}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(withdrawalRequest{AmountCents: 5000})
	req := authedRequest(t, h, http.MethodPost, "/api/user/withdrawals", body, model.RoleUser)
	rec := serveWithAuth(h, h.RequestWithdrawal, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp map[string]int64
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["transactionId"] != 77 {
		t.Fatalf("transactionId = %d, want 77", resp["transactionId"])
	}
}

func TestGetTransaction_ForbiddenForForeign(t *testing.T) {
	svc := &stubService{transactionErr: service.ErrForbidden}
	h := newTestHandler(t, svc)

	r := newRouterRequest(t, h, http.MethodGet, "/api/user/transactions/5", nil, model.RoleUser)
	if r.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusForbidden)
	}
}

func TestAdminRoutes_ForbiddenForUserRole(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	r := newRouterRequest(t, h, http.MethodGet, "/api/admin/transactions", nil, model.RoleUser)
	if r.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusForbidden)
	}
}

func TestForceCancel_ForbiddenForAdminRole(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	r := newRouterRequest(t, h, http.MethodPost, "/api/admin/investments/3/force-cancel", nil, model.RoleAdmin)
	if r.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusForbidden)
	}
}

func TestForceCancel_AllowedForSuperAdmin(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	r := newRouterRequest(t, h, http.MethodPost, "/api/admin/investments/3/force-cancel", nil, model.RoleSuperAdmin)
	if r.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusOK)
	}
}

func TestProcessWithdrawal_ConflictWhenNotPending(t *testing.T) {
	svc := &stubService{processErr: repository.ErrNotPendingWithdrawal}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(processWithdrawalRequest{Action: "complete"})
	r := newRouterRequest(t, h, http.MethodPost, "/api/admin/withdrawals/9/process", body, model.RoleAdmin)
	if r.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusConflict)
	}
}

func TestGetProfile_JSONResponse(t *testing.T) {
	svc := &stubService{
		profileUser:   &model.User{ID: 1, Email: "a@b.c"},
		profileWallet: &model.Wallet{UserID: 1, Currency: "USD", MainCents: 500},
	}
	h := newTestHandler(t, svc)

	req := authedRequest(t, h, http.MethodGet, "/api/user/profile", nil, model.RoleUser)
	rec := serveWithAuth(h, h.GetProfile, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp profileResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User == nil || resp.User.Email != "a@b.c" {
		t.Fatalf("profile user missing: %+v", resp.User)
	}
	if resp.Wallet == nil || resp.Wallet.MainCents != 500 {
		t.Fatalf("profile wallet missing: %+v", resp.Wallet)
	}
}

func TestAdminListUsers_BadRequestOnUnknownStatus(t *testing.T) {
	svc := &stubService{usersErr: service.ErrValidation}
	h := newTestHandler(t, svc)

	r := newRouterRequest(t, h, http.MethodGet, "/api/admin/users?status=deleted", nil, model.RoleAdmin)
	if r.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusBadRequest)
	}
}

func TestSuspendUser_AllowedForAdmin(t *testing.T) {
	svc := &stubService{suspended: true}
	h := newTestHandler(t, svc)

	r := newRouterRequest(t, h, http.MethodPost, "/api/admin/users/4/suspend", nil, model.RoleAdmin)
	if r.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["suspended"] {
		t.Fatalf("suspended = false, want true")
	}
}

func TestSuspendUser_NotFound(t *testing.T) {
	svc := &stubService{suspendErr: repository.ErrUserNotFound}
	h := newTestHandler(t, svc)

	r := newRouterRequest(t, h, http.MethodPost, "/api/admin/users/999/suspend", nil, model.RoleAdmin)
	if r.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusNotFound)
	}
}

func TestSetUserRole_ForbiddenForAdminRole(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(setRoleRequest{Role: "admin"})
	r := newRouterRequest(t, h, http.MethodPut, "/api/admin/users/4/role", body, model.RoleAdmin)
	if r.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusForbidden)
	}
}

func TestSetUserRole_AllowedForSuperAdmin(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(setRoleRequest{Role: "admin"})
	r := newRouterRequest(t, h, http.MethodPut, "/api/admin/users/4/role", body, model.RoleSuperAdmin)
	if r.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", r.Code, http.StatusOK)
	}
}

func TestGetPlans_Public(t *testing.T) {
	svc := &stubService{plans: []model.Plan{{ID: 1, Slug: "starter"}}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// newRouterRequest прогоняет запрос через полный роутер с cookie указанной роли.
func newRouterRequest(t *testing.T, h *Handler, method, target string, body []byte, role model.Role) *httptest.ResponseRecorder {
	t.Helper()

	req := authedRequest(t, h, method, target, body, role)
	rec := httptest.NewRecorder()

	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}
