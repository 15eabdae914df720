package handler

import (
	"errors"
	"net/http"

	"stockledger/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// 共通のエラー形 { "error": "..." }
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse は { message: string } の形
type SuccessResponse struct {
	Message string `json:"message"`
}

// 在庫不足のときだけ、どの商品が足りないかを返す
type InsufficientStockResponse struct {
	Error       string `json:"error"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Available   int64  `json:"available"`
	Requested   int64  `json:"requested"`
}

// usecaseのエラーをHTTPに変換
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	if ie, ok := usecase.AsInsufficientStock(err); ok {
		return c.JSON(http.StatusConflict, InsufficientStockResponse{
			Error:       "insufficient stock",
			ProductID:   ie.ProductID,
			ProductName: ie.ProductName,
			Available:   ie.Available,
			Requested:   ie.Requested,
		})
	}

	switch {
	case errors.Is(err, usecase.ErrProductNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "product not found"})
	case errors.Is(err, usecase.ErrAlertNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "alert not found"})
	case errors.Is(err, usecase.ErrTransactionConflict):
		//やり直しで解消しなかった。クライアント側で再送してよい
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "transaction conflict, retry later"})
	case errors.Is(err, usecase.ErrReasonRequired):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reason is required"})
	case errors.Is(err, usecase.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
	case errors.Is(err, usecase.ErrInvalidOrderID):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order_id"})
	case errors.Is(err, usecase.ErrInvalidProductID):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product_id"})
	case errors.Is(err, usecase.ErrNoItems):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "items required"})
	}

	//500
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
