package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"library-lending/internal/config"
	"library-lending/internal/domains/lending/model"
	"library-lending/internal/domains/lending/service"
	"library-lending/internal/shared"
	"library-lending/internal/shared/response"
	"library-lending/internal/shared/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type LoanHandler struct {
	service service.ServiceInterface
	policy  config.LendingConfig
	now     shared.Clock
}

func NewLoanHandler(service service.ServiceInterface, policy config.LendingConfig, clock shared.Clock) *LoanHandler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &LoanHandler{service: service, policy: policy, now: clock}
}

// RegisterRoutes mounts the lending endpoints. mutating wraps the routes that move stock.
func (h *LoanHandler) RegisterRoutes(router *gin.RouterGroup, mutating ...gin.HandlerFunc) {
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, mutating...), handler)
	}

	loans := router.Group("/loans")
	{
		loans.POST("", guarded(h.Borrow)...)
		loans.GET("", h.ListLoans)
		loans.GET("/overdue", h.ListOverdue)
		loans.GET("/due-soon", h.ListDueSoon)
		loans.GET("/stats", h.Stats)
		loans.GET("/:id", h.GetLoan)
		loans.POST("/:id/return", guarded(h.ReturnLoan)...)
		loans.POST("/:id/extend", guarded(h.Extend)...)
	}

	router.GET("/members/:id/active-loans", h.BorrowerSummary)
	router.GET("/titles/:id/lending-status", h.TitleLendingStatus)
}

// =====================================================
// BORROW / RETURN / EXTEND
// =====================================================

// Borrow godoc
// @Summary Borrow a copy of a title
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body model.CreateLoanRequest true "Borrow request"
// @Success 201 {object} response.Response{data=model.LoanView}
// @Failure 400,409,422,503 {object} response.Response
// @Router /v1/loans [post]
func (h *LoanHandler) Borrow(c *gin.Context) {
	var req model.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Validation failed", err)
		return
	}

	days := h.policy.DefaultLoanDays
	if req.DurationDays != nil {
		days = *req.DurationDays
	}

	loan, err := h.service.Borrow(c.Request.Context(), model.BorrowRequest{
		BorrowerID:     uuid.MustParse(req.BorrowerID),
		TitleID:        uuid.MustParse(req.TitleID),
		DurationDays:   days,
		MaxActiveLoans: h.policy.MaxActiveLoans,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, h.view(loan, h.now()))
}

// ReturnLoan godoc
// @Summary Return a borrowed copy
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID (UUID)"
// @Success 200 {object} response.Response{data=model.LoanView}
// @Failure 400,404,409,503 {object} response.Response
// @Router /v1/loans/{id}/return [post]
func (h *LoanHandler) ReturnLoan(c *gin.Context) {
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}

	loan, err := h.service.ReturnLoan(c.Request.Context(), loanID)
	if err != nil && loan != nil && model.IsReservationLeak(err) {
		response.SuccessWithWarning(c, http.StatusOK, h.view(loan, h.now()),
			model.ErrCodeReservationLeak, "Loan returned, stock release is pending reconciliation")
		return
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.view(loan, h.now()))
}

// Extend godoc
// @Summary Extend the due date of an active loan
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path string true "Loan ID (UUID)"
// @Param request body model.ExtendLoanRequest true "Extension"
// @Success 200 {object} response.Response{data=model.LoanView}
// @Failure 400,404,409 {object} response.Response
// @Router /v1/loans/{id}/extend [post]
func (h *LoanHandler) Extend(c *gin.Context) {
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}

	var req model.ExtendLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request body", err.Error())
		return
	}

	loan, err := h.service.Extend(c.Request.Context(), loanID, req.AdditionalDays)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, h.view(loan, h.now()))
}

// =====================================================
// READS
// =====================================================

// GetLoan returns the loan evaluated now, or at ?at= when given. ?rate= overrides the daily fine.
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	ref, ok := h.refTime(c)
	if !ok {
		return
	}
	rate, err := utils.ParseOptionalDecimal(c.Query("rate"), h.policy.DailyFine)
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "rate must be a decimal number")
		return
	}

	view, err := h.service.LoanReport(c.Request.Context(), loanID, ref, rate, h.policy.DueSoonWindow)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// ListLoans handles GET /loans?borrower_id&title_id&state&due_from&due_to&sort&page&limit
func (h *LoanHandler) ListLoans(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}

	loans, total, err := h.service.ListLoans(c.Request.Context(), filter)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondPage(c, loans, total, filter)
}

func (h *LoanHandler) ListOverdue(c *gin.Context) {
	ref, ok := h.refTime(c)
	if !ok {
		return
	}
	page, limit, ok := h.pagination(c)
	if !ok {
		return
	}

	loans, total, err := h.service.ListOverdue(c.Request.Context(), ref, limit, (page-1)*limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondPage(c, loans, total, model.LoanFilter{Ref: ref, Limit: limit, Offset: (page - 1) * limit})
}

// ListDueSoon handles GET /loans/due-soon?within=72h
func (h *LoanHandler) ListDueSoon(c *gin.Context) {
	ref, ok := h.refTime(c)
	if !ok {
		return
	}
	page, limit, ok := h.pagination(c)
	if !ok {
		return
	}

	window := h.policy.DueSoonWindow
	if raw := c.Query("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "within must be a positive duration such as 48h")
			return
		}
		window = d
	}

	loans, total, err := h.service.ListDueSoon(c.Request.Context(), ref, window, limit, (page-1)*limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.respondPage(c, loans, total, model.LoanFilter{Ref: ref, Limit: limit, Offset: (page - 1) * limit})
}

func (h *LoanHandler) Stats(c *gin.Context) {
	ref, ok := h.refTime(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), ref)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// BorrowerSummary handles GET /members/:id/active-loans
func (h *LoanHandler) BorrowerSummary(c *gin.Context) {
	borrowerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Member ID must be a valid UUID")
		return
	}

	summary, err := h.service.BorrowerSummary(c.Request.Context(), borrowerID, h.policy.MaxActiveLoans)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}

type TitleLendingStatus struct {
	TitleID       uuid.UUID `json:"title_id"`
	CurrentlyLent bool      `json:"currently_lent"`
}

// TitleLendingStatus handles GET /titles/:id/lending-status
func (h *LoanHandler) TitleLendingStatus(c *gin.Context) {
	titleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Title ID must be a valid UUID")
		return
	}

	lent, err := h.service.IsTitleCurrentlyLent(c.Request.Context(), titleID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, TitleLendingStatus{TitleID: titleID, CurrentlyLent: lent})
}

// =====================================================
// HELPERS
// =====================================================

func (h *LoanHandler) view(loan *model.Loan, ref time.Time) model.LoanView {
	return model.NewLoanView(loan, ref, h.policy.DailyFine, h.policy.DueSoonWindow)
}

func (h *LoanHandler) respondPage(c *gin.Context, loans []model.Loan, total int, filter model.LoanFilter) {
	ref := filter.Ref
	if ref.IsZero() {
		ref = h.now()
	}

	views := make([]model.LoanView, 0, len(loans))
	for i := range loans {
		views = append(views, h.view(&loans[i], ref))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = model.DefaultListLimit
	}
	response.SuccessWithMeta(c, http.StatusOK, views, &response.Meta{
		Page:  filter.Offset/limit + 1,
		Limit: limit,
		Total: total,
	})
}

func (h *LoanHandler) loanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Loan ID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// refTime reads ?at=, defaulting to now.
func (h *LoanHandler) refTime(c *gin.Context) (time.Time, bool) {
	at, err := utils.ParseOptionalTime(c.Query("at"))
	if err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, err.Error())
		return time.Time{}, false
	}
	if at == nil {
		return h.now(), true
	}
	return *at, true
}

func (h *LoanHandler) pagination(c *gin.Context) (page, limit int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "page must be a positive integer")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(model.DefaultListLimit)))
	if err != nil || limit < 1 || limit > model.MaxListLimit {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "limit must be between 1 and 200")
		return 0, 0, false
	}
	return page, limit, true
}

func (h *LoanHandler) parseFilter(c *gin.Context) (model.LoanFilter, bool) {
	var filter model.LoanFilter

	for param, dst := range map[string]**uuid.UUID{
		"borrower_id": &filter.BorrowerID,
		"title_id":    &filter.TitleID,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, param+" must be a valid UUID")
			return filter, false
		}
		*dst = &id
	}

	var err error
	if filter.DueFrom, err = utils.ParseOptionalTime(c.Query("due_from")); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "due_from: "+err.Error())
		return filter, false
	}
	if filter.DueTo, err = utils.ParseOptionalTime(c.Query("due_to")); err != nil {
		response.ErrorResponse(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "due_to: "+err.Error())
		return filter, false
	}

	ref, ok := h.refTime(c)
	if !ok {
		return filter, false
	}
	page, limit, ok := h.pagination(c)
	if !ok {
		return filter, false
	}

	filter.State = model.State(c.Query("state"))
	filter.Sort = model.SortOrder(c.Query("sort"))
	filter.Ref = ref
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	return filter, true
}

// handleServiceError maps lending errors to status codes.
func (h *LoanHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrUnknownBorrower):
		response.ErrorResponse(c, http.StatusUnprocessableEntity, model.ErrCodeUnknownBorrower, "Borrower not found")
	case errors.Is(err, model.ErrBorrowerNotEligible):
		response.ErrorResponse(c, http.StatusUnprocessableEntity, model.ErrCodeBorrowerNotEligible, "Borrower is not eligible to borrow")
	case errors.Is(err, model.ErrUnknownTitle):
		response.ErrorResponse(c, http.StatusUnprocessableEntity, model.ErrCodeUnknownTitle, "Title not found")
	case errors.Is(err, model.ErrInvalidInput):
		response.ErrorWithDetails(c, http.StatusBadRequest, model.ErrCodeInvalidRequest, "Invalid request", err.Error())
	case errors.Is(err, model.ErrStockUnavailable):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeStockUnavailable, "No copies of this title are available")
	case errors.Is(err, model.ErrBorrowingCapExceeded):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeCapExceeded, "Borrowing limit reached")
	case errors.Is(err, model.ErrLoanNotFound):
		response.ErrorResponse(c, http.StatusNotFound, model.ErrCodeLoanNotFound, "Loan not found")
	case errors.Is(err, model.ErrAlreadyReturned):
		response.ErrorResponse(c, http.StatusConflict, model.ErrCodeAlreadyReturned, "Loan already returned")
	case errors.Is(err, model.ErrInconsistentState):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("lending state inconsistent")
		response.ErrorResponse(c, http.StatusInternalServerError, model.ErrCodeInconsistentState, "Borrow failed and could not be rolled back, staff have been notified")
	case errors.Is(err, model.ErrOutcomeUnknown):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("borrow outcome unknown")
		response.ErrorResponse(c, http.StatusServiceUnavailable, model.ErrCodeOutcomeUnknown, "Borrow may not have completed, check your loans before retrying")
	case errors.Is(err, model.ErrStorageUnavailable):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("lending storage unavailable")
		response.ErrorResponse(c, http.StatusServiceUnavailable, model.ErrCodeStorageUnavailable, "Service temporarily unavailable, check your loans before retrying")
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected lending error")
		response.ErrorResponse(c, http.StatusInternalServerError, model.ErrCodeInternal, "Internal server error")
	}
}
