package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"library-lending/internal/config"
	catalogModel "library-lending/internal/domains/catalog/model"
	catalogRepo "library-lending/internal/domains/catalog/repository"
	invRepo "library-lending/internal/domains/inventory/repository"
	inventory "library-lending/internal/domains/inventory/service"
	"library-lending/internal/domains/lending/model"
	"library-lending/internal/domains/lending/repository"
	"library-lending/internal/domains/lending/service"
	memberModel "library-lending/internal/domains/member/model"
	memberRepo "library-lending/internal/domains/member/repository"
	"library-lending/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

var policy = config.LendingConfig{
	MaxActiveLoans:  2,
	DefaultLoanDays: 14,
	DailyFine:       model.DefaultDailyFine,
	DueSoonWindow:   72 * time.Hour,
}

type env struct {
	router   *gin.Engine
	titleID  uuid.UUID
	memberID uuid.UUID
}

func givenAPI(t *testing.T, copies int) env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	catalog := catalogRepo.NewMemoryRepository()
	title := &catalogModel.Title{ISBN: "9780131103627", Title: "The C Programming Language", Stock: copies}
	require.NoError(t, catalog.Create(ctx, title))

	members := memberRepo.NewMemoryRepository()
	member := &memberModel.Member{Name: "Grace Hopper", Email: "grace@example.org", Active: true}
	require.NoError(t, members.Create(ctx, member))

	controller := inventory.NewController(invRepo.NewMemoryRepository(catalog), nil, nil, time.Minute, clock)
	engine := service.NewEngine(repository.NewMemoryRepository(), controller, members, catalog, nil, clock)

	r := gin.New()
	NewLoanHandler(engine, policy, clock).RegisterRoutes(r.Group("/api/v1"))
	return env{router: r, titleID: title.ID, memberID: member.ID}
}

func givenStubbedAPI(svc service.ServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewLoanHandler(svc, policy, clock).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *response.Error `json:"error"`
	Warning *response.Error `json:"warning"`
	Meta    *response.Meta  `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func (e env) borrow(t *testing.T) model.LoanView {
	t.Helper()
	w := do(e.router, http.MethodPost, "/api/v1/loans", gin.H{
		"borrower_id": e.memberID.String(),
		"title_id":    e.titleID.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view model.LoanView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	return view
}

// =====================================================
// BORROW
// =====================================================

func TestBorrow_Created(t *testing.T) {
	e := givenAPI(t, 1)

	view := e.borrow(t)

	assert.Equal(t, model.StateActive, view.State)
	assert.True(t, now.Add(14*model.Day).Equal(view.DueAt))
	assert.Equal(t, e.titleID, view.TitleID)
}

func TestBorrow_ErrorMapping(t *testing.T) {
	e := givenAPI(t, 1)
	otherMember := uuid.New()

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"malformed json", "not-an-object", http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"missing title", gin.H{"borrower_id": e.memberID.String()}, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"zero duration", gin.H{"borrower_id": e.memberID.String(), "title_id": e.titleID.String(), "duration_days": 0}, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"unknown borrower", gin.H{"borrower_id": otherMember.String(), "title_id": e.titleID.String()}, http.StatusUnprocessableEntity, model.ErrCodeUnknownBorrower},
		{"unknown title", gin.H{"borrower_id": e.memberID.String(), "title_id": uuid.NewString()}, http.StatusUnprocessableEntity, model.ErrCodeUnknownTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(e.router, http.MethodPost, "/api/v1/loans", tt.body)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestBorrow_ConflictWhenNoCopyLeft(t *testing.T) {
	e := givenAPI(t, 1)
	e.borrow(t)

	w := do(e.router, http.MethodPost, "/api/v1/loans", gin.H{
		"borrower_id": e.memberID.String(),
		"title_id":    e.titleID.String(),
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, model.ErrCodeStockUnavailable, decode(t, w).Error.Code)
}

func TestBorrow_ConflictAtCap(t *testing.T) {
	e := givenAPI(t, 5)
	e.borrow(t)
	e.borrow(t)

	w := do(e.router, http.MethodPost, "/api/v1/loans", gin.H{
		"borrower_id": e.memberID.String(),
		"title_id":    e.titleID.String(),
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, model.ErrCodeCapExceeded, decode(t, w).Error.Code)
}

// =====================================================
// RETURN / EXTEND
// =====================================================

func TestReturn_ThenReturnAgain(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)

	first := do(e.router, http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/return", nil)
	second := do(e.router, http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/return", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Nil(t, decode(t, first).Warning)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, model.ErrCodeAlreadyReturned, decode(t, second).Error.Code)
}

func TestReturn_NotFoundAndBadID(t *testing.T) {
	e := givenAPI(t, 1)

	missing := do(e.router, http.MethodPost, "/api/v1/loans/"+uuid.NewString()+"/return", nil)
	bad := do(e.router, http.MethodPost, "/api/v1/loans/42/return", nil)

	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestExtend_OK(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)

	w := do(e.router, http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/extend", gin.H{"additional_days": 7})

	require.Equal(t, http.StatusOK, w.Code)
	var view model.LoanView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.True(t, loan.DueAt.Add(7*model.Day).Equal(view.DueAt))
}

func TestExtend_RejectsNonPositiveDays(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)

	w := do(e.router, http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/extend", gin.H{"additional_days": -1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type leakingService struct {
	service.ServiceInterface
	loan *model.Loan
	err  error
}

func (s leakingService) ReturnLoan(context.Context, uuid.UUID) (*model.Loan, error) {
	return s.loan, s.err
}

func (s leakingService) Borrow(context.Context, model.BorrowRequest) (*model.Loan, error) {
	return nil, s.err
}

func TestReturn_LeakIsSuccessWithWarning(t *testing.T) {
	// arrange
	returnedAt := now
	loan := model.NewLoan(uuid.New(), uuid.New(), uuid.New(), now.Add(-3*model.Day), 14)
	loan.ReturnedAt = &returnedAt
	r := givenStubbedAPI(leakingService{
		loan: loan,
		err:  &model.ReservationLeakError{LoanID: loan.ID, TitleID: loan.TitleID, Cause: errors.New("timeout")},
	})

	// act
	w := do(r, http.MethodPost, "/api/v1/loans/"+loan.ID.String()+"/return", nil)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.True(t, body.Success)
	require.NotNil(t, body.Warning)
	assert.Equal(t, model.ErrCodeReservationLeak, body.Warning.Code)
}

func TestBorrow_StorageFailureIs503(t *testing.T) {
	r := givenStubbedAPI(leakingService{err: errors.Join(model.ErrStorageUnavailable, errors.New("dial tcp"))})

	w := do(r, http.MethodPost, "/api/v1/loans", gin.H{"borrower_id": uuid.NewString(), "title_id": uuid.NewString()})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, model.ErrCodeStorageUnavailable, decode(t, w).Error.Code)
}

func TestBorrow_UnknownOutcomeIs503WithOwnCode(t *testing.T) {
	r := givenStubbedAPI(leakingService{err: fmt.Errorf("%w: %w: loan x", model.ErrStorageUnavailable, model.ErrOutcomeUnknown)})

	w := do(r, http.MethodPost, "/api/v1/loans", gin.H{"borrower_id": uuid.NewString(), "title_id": uuid.NewString()})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, model.ErrCodeOutcomeUnknown, decode(t, w).Error.Code)
}

func TestBorrow_AcceptsLongDuration(t *testing.T) {
	e := givenAPI(t, 1)

	w := do(e.router, http.MethodPost, "/api/v1/loans", gin.H{
		"borrower_id":   e.memberID.String(),
		"title_id":      e.titleID.String(),
		"duration_days": 400,
	})

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// =====================================================
// READS
// =====================================================

func TestGetLoan_OverdueAtReference(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)
	at := loan.DueAt.Add(5 * model.Day).Format(time.RFC3339)

	w := do(e.router, http.MethodGet, "/api/v1/loans/"+loan.ID.String()+"?at="+at, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var view model.LoanView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.True(t, view.Overdue)
	assert.Equal(t, 5, view.DaysOverdue)
	assert.True(t, view.Fine.Equal(decimal.NewFromInt(5)), view.Fine.String())
}

func TestGetLoan_RateOverride(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)
	at := loan.DueAt.Add(4 * model.Day).Format(time.RFC3339)
	base := "/api/v1/loans/" + loan.ID.String() + "?at=" + at

	w := do(e.router, http.MethodGet, base+"&rate=0.25", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var view model.LoanView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.True(t, view.Fine.Equal(decimal.NewFromInt(1)), view.Fine.String())

	assert.Equal(t, http.StatusBadRequest, do(e.router, http.MethodGet, base+"&rate=abc", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(e.router, http.MethodGet, base+"&rate=-1", nil).Code)
}

func TestListLoans_WithMeta(t *testing.T) {
	e := givenAPI(t, 3)
	e.borrow(t)
	e.borrow(t)

	w := do(e.router, http.MethodGet, "/api/v1/loans?borrower_id="+e.memberID.String()+"&state=active&limit=1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	require.NotNil(t, body.Meta)
	assert.Equal(t, 2, body.Meta.Total)
	assert.Equal(t, 1, body.Meta.Limit)

	var views []model.LoanView
	require.NoError(t, json.Unmarshal(body.Data, &views))
	assert.Len(t, views, 1)
}

func TestListLoans_RejectsBadParams(t *testing.T) {
	e := givenAPI(t, 1)

	for _, q := range []string{"state=lost", "borrower_id=nope", "due_from=yesterday", "limit=0", "page=-1"} {
		w := do(e.router, http.MethodGet, "/api/v1/loans?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestOverdueDueSoonAndStats(t *testing.T) {
	e := givenAPI(t, 1)
	loan := e.borrow(t)
	soon := loan.DueAt.Add(-24 * time.Hour).Format(time.RFC3339)
	late := loan.DueAt.Add(48 * time.Hour).Format(time.RFC3339)

	dueSoon := decode(t, do(e.router, http.MethodGet, "/api/v1/loans/due-soon?at="+soon, nil))
	overdue := decode(t, do(e.router, http.MethodGet, "/api/v1/loans/overdue?at="+late, nil))
	notYet := decode(t, do(e.router, http.MethodGet, "/api/v1/loans/overdue?at="+soon, nil))
	stats := do(e.router, http.MethodGet, "/api/v1/loans/stats?at="+late, nil)

	assert.Equal(t, 1, dueSoon.Meta.Total)
	assert.Equal(t, 1, overdue.Meta.Total)
	assert.Equal(t, 0, notYet.Meta.Total)

	require.Equal(t, http.StatusOK, stats.Code)
	var s model.LoanStats
	require.NoError(t, json.Unmarshal(decode(t, stats).Data, &s))
	assert.Equal(t, 1, s.Overdue)
}

func TestBorrowerSummaryAndTitleStatus(t *testing.T) {
	e := givenAPI(t, 2)
	e.borrow(t)

	w := do(e.router, http.MethodGet, "/api/v1/members/"+e.memberID.String()+"/active-loans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.BorrowerSummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &summary))
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.Equal(t, 2, summary.MaxActiveLoans)
	assert.True(t, summary.CanBorrow)

	w = do(e.router, http.MethodGet, "/api/v1/titles/"+e.titleID.String()+"/lending-status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status TitleLendingStatus
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &status))
	assert.True(t, status.CurrentlyLent)

	w = do(e.router, http.MethodGet, "/api/v1/members/"+uuid.NewString()+"/active-loans", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
