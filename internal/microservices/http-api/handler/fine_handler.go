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

type FineHandler struct {
	svc    service.FineService
	logger *slog.Logger
}

func NewFineHandler(svc service.FineService, logger *slog.Logger) *FineHandler {
	return &FineHandler{svc: svc, logger: logger}
}

func (h *FineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/my", h.ListMine)
	rg.GET("", middleware.RequireRole(models.RoleAdmin, models.RoleLibrarian), h.List)
	rg.POST("/:id/pay", h.Pay)
	rg.POST("/:id/waive", middleware.RequireAdmin(), h.Waive)
}

func (h *FineHandler) ListMine(c *gin.Context) {
	status := models.FineStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	fines, err := h.svc.GetUserFines(ctx, middleware.UserID(c), status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.FromFines(fines), "total": len(fines)})
}

func (h *FineHandler) List(c *gin.Context) {
	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return
	}
	status := models.FineStatus(q.Status)
	if status != "" && !status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	fines, total, err := h.svc.ListFines(ctx, q.Page, q.Limit, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPaginated(dto.FromFines(fines), q.Page, q.Limit, total))
}

func (h *FineHandler) Pay(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	fine, err := h.svc.PayFine(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromFine(*fine))
}

func (h *FineHandler) Waive(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	fine, err := h.svc.WaiveFine(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromFine(*fine))
}
