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

type BookHandler struct {
	svc    service.BookService
	logger *slog.Logger
}

func NewBookHandler(svc service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{svc: svc, logger: logger}
}

func (h *BookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", middleware.RequireRole(models.RoleAdmin, models.RoleLibrarian), h.Create)
	rg.GET("/:id", h.Get)
}

func (h *BookHandler) Create(c *gin.Context) {
	var req dto.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	book, err := h.svc.CreateBook(ctx, req.ToModel())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromBook(*book))
}

func (h *BookHandler) Get(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	book, err := h.svc.GetBook(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBook(*book))
}
