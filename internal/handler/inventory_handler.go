package handler

import (
	"net/http"

	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 予約・解放の入力
type ReservationRequest struct {
	OrderID string              `json:"order_id"`
	Items   []usecase.StockItem `json:"items"`
}

// /inventory 注文フロー向けAPI
type InventoryHandler struct {
	uc *usecase.InventoryUsecase
}

// DI
func NewInventoryHandler(uc *usecase.InventoryUsecase) *InventoryHandler {
	return &InventoryHandler{uc: uc}
}

func (h *InventoryHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/inventory")
	g.POST("/reservations", h.reserve)
	g.POST("/reservations/release", h.release)
	g.POST("/orders/:order_id/confirm", h.confirm)
}

func (h *InventoryHandler) reserve(c echo.Context) error {
	var req ReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.Reserve(c.Request().Context(), req.Items, req.OrderID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "reserved"})
}

func (h *InventoryHandler) release(c echo.Context) error {
	var req ReservationRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	if err := h.uc.Release(c.Request().Context(), req.Items, req.OrderID); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "released"})
}

func (h *InventoryHandler) confirm(c echo.Context) error {
	if err := h.uc.Confirm(c.Request().Context(), c.Param("order_id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "confirmed"})
}
