package handler

import (
	"net/http"
	"strconv"

	"stockledger/internal/domain/model"
	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
)

// InventoryUpdateRequest は在庫の補正（現在値で指定）
type InventoryUpdateRequest struct {
	ProductName string `json:"product_name"`
	Stock       *int64 `json:"stock"`
	Reason      string `json:"reason"`
}

// RestockRequest は入荷（差分で指定）
type RestockRequest struct {
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	Reason      string `json:"reason"`
}

type TransactionListResponse struct {
	Items []model.StockTransaction `json:"items"`
}

type AlertListResponse struct {
	Items []model.StockAlert `json:"items"`
}

// /admin/inventory と /admin/alerts
type AdminInventoryHandler struct {
	uc *usecase.AdminInventoryUsecase
}

// DI
func NewAdminInventoryHandler(uc *usecase.AdminInventoryUsecase) *AdminInventoryHandler {
	return &AdminInventoryHandler{uc: uc}
}

// 認証は前段（gateway）で済んでいる前提
func (h *AdminInventoryHandler) RegisterRoutes(e *echo.Echo) {
	admin := e.Group("/admin")

	admin.PUT("/inventory/:product_id", h.updateInventory)
	admin.POST("/inventory/:product_id/restock", h.restock)
	admin.GET("/inventory/:product_id/transactions", h.transactions)

	admin.GET("/alerts", h.alerts)
	admin.POST("/alerts/:id/acknowledge", h.acknowledge)
}

func (h *AdminInventoryHandler) updateInventory(c echo.Context) error {
	var req InventoryUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	//0 と未指定を区別する
	if req.Stock == nil {
		return badRequest(c, "stock is required")
	}

	err := h.uc.AdjustStock(c.Request().Context(), c.Param("product_id"), req.ProductName, *req.Stock, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "updated"})
}

func (h *AdminInventoryHandler) restock(c echo.Context) error {
	var req RestockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	err := h.uc.Restock(c.Request().Context(), c.Param("product_id"), req.ProductName, req.Quantity, req.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "restocked"})
}

func (h *AdminInventoryHandler) transactions(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	txs, err := h.uc.GetTransactions(c.Request().Context(), c.Param("product_id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, TransactionListResponse{Items: txs})
}

func (h *AdminInventoryHandler) alerts(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	onlyOpen := false
	if v := c.QueryParam("open"); v != "" {
		onlyOpen, err = strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid open")
		}
	}

	alerts, err := h.uc.ListAlerts(c.Request().Context(), usecase.ListAlertsInput{
		ProductID: c.QueryParam("product_id"),
		OnlyOpen:  onlyOpen,
		Limit:     limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, AlertListResponse{Items: alerts})
}

func (h *AdminInventoryHandler) acknowledge(c echo.Context) error {
	if err := h.uc.AcknowledgeAlert(c.Request().Context(), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "acknowledged"})
}

// limit（未指定は0 → usecase側で50）
func queryLimit(c echo.Context) (int, error) {
	v := c.QueryParam("limit")
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
