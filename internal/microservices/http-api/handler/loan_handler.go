package handler

import (
	"log/slog"
	"net/http"

	"libraryhub/internal/microservices/http-api/dto"
	"libraryhub/internal/microservices/http-api/middleware"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

type LoanHandler struct {
	loans        service.LoanService
	reservations service.ReservationService
	logger       *slog.Logger
}

func NewLoanHandler(loans service.LoanService, reservations service.ReservationService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{loans: loans, reservations: reservations, logger: logger}
}

func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleLibrarian)

	rg.POST("/borrow", h.Borrow)
	rg.GET("/my", h.ListMine)
	rg.GET("/statistics", staff, h.Statistics)
	rg.POST("/check-overdue", middleware.RequireAdmin(), h.CheckOverdue)
	rg.GET("", staff, h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/return", h.Return)
	rg.PATCH("/:id/extend", h.Extend)
}

// Borrow lends a book to the caller
func (h *LoanHandler) Borrow(c *gin.Context) {
	var req dto.BorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	loan, err := h.loans.BorrowBook(ctx, middleware.UserID(c), req.BookID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromLoan(*loan))
}

// ownLoan loads a loan the caller may act on. Other users' loans read as
// missing unless the caller is staff.
func (h *LoanHandler) ownLoan(c *gin.Context) (*models.Loan, bool) {
	ctx, cancel := requestContext(c)
	defer cancel()

	loan, err := h.loans.GetLoan(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	if loan.UserID != middleware.UserID(c) && !middleware.IsStaff(c) {
		respondError(c, h.logger, service.ErrLoanNotFound)
		return nil, false
	}
	return loan, true
}

func (h *LoanHandler) Get(c *gin.Context) {
	loan, ok := h.ownLoan(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.FromLoan(*loan))
}

// Return closes the loan, then offers the freed copy to the hold queue.
func (h *LoanHandler) Return(c *gin.Context) {
	if _, ok := h.ownLoan(c); !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	loan, err := h.loans.ReturnBook(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if _, err := h.reservations.ActivateNextReservation(ctx, loan.BookID); err != nil {
		h.logger.Warn("reservation_activation_failed", "book_id", loan.BookID, "loan_id", loan.ID, "error", err)
	}
	c.JSON(http.StatusOK, dto.FromLoan(*loan))
}

func (h *LoanHandler) Extend(c *gin.Context) {
	var req dto.ExtendLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, ok := h.ownLoan(c); !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	loan, err := h.loans.ExtendLoan(ctx, c.Param("id"), req.Days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromLoan(*loan))
}

func (h *LoanHandler) ListMine(c *gin.Context) {
	status := models.LoanStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	loans, err := h.loans.GetUserLoans(ctx, middleware.UserID(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.FromLoans(loans), "total": len(loans)})
}

func (h *LoanHandler) List(c *gin.Context) {
	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := models.LoanStatus(q.Status)
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	loans, total, err := h.loans.ListLoans(ctx, q.Page, q.Limit, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginated(dto.FromLoans(loans), q.Page, q.Limit, total))
}

func (h *LoanHandler) Statistics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.loans.GetStatistics(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.LoanStatisticsResponse(*stats))
}

func (h *LoanHandler) CheckOverdue(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.loans.CheckOverdueLoans(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckOverdueResponse{Processed: n})
}
