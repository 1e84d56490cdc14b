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

type ReservationHandler struct {
	svc    service.ReservationService
	logger *slog.Logger
}

func NewReservationHandler(svc service.ReservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, logger: logger}
}

func (h *ReservationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleLibrarian)

	rg.POST("", h.Create)
	rg.GET("/my", h.ListMine)
	rg.GET("", staff, h.List)
	rg.DELETE("/:id", h.Cancel)
	rg.POST("/:id/claim", h.Claim)
	rg.PATCH("/:id/status", staff, h.UpdateStatus)
	rg.POST("/books/:bookId/activate", staff, h.Activate)
}

func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.svc.CreateReservation(ctx, middleware.UserID(c), req.BookID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromReservation(*res))
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.svc.CancelReservation(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromReservation(*res))
}

// Claim picks up a READY hold and turns it into a loan
func (h *ReservationHandler) Claim(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	loan, err := h.svc.ClaimReservation(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromLoan(*loan))
}

func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.svc.UpdateStatusByAdmin(ctx, c.Param("id"), models.ReservationStatus(req.Status))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromReservation(*res))
}

func (h *ReservationHandler) Activate(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	activated, err := h.svc.ActivateNextReservation(ctx, c.Param("bookId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ActivateResponse{
		Activated: dto.FromReservations(activated),
		Count:     len(activated),
	})
}

func (h *ReservationHandler) ListMine(c *gin.Context) {
	status := models.ReservationStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	list, err := h.svc.GetUserReservations(ctx, middleware.UserID(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.FromReservations(list), "total": len(list)})
}

func (h *ReservationHandler) List(c *gin.Context) {
	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := models.ReservationStatus(q.Status)
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	list, total, err := h.svc.ListReservations(ctx, q.Page, q.Limit, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginated(dto.FromReservations(list), q.Page, q.Limit, total))
}
