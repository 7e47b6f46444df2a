package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/cloudprint/internal/api/dto"
	"github.com/cuongbtq/cloudprint/internal/formatter"
	"github.com/cuongbtq/cloudprint/internal/printing"
	"github.com/gin-gonic/gin"
)

// PrintOrder handles POST /api/v1/stores/:store_id/orders/print.
// Per-target failures are reported in the body with status 200.
func (h *OrderHandler) PrintOrder(c *gin.Context) {
	storeID := c.Param("store_id")

	var req dto.PrintOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.Order.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "order.order_id is required",
		})
		return
	}

	order := req.Order
	order.StoreID = storeID

	opts := printing.FullOptions{
		PrintReceipt: req.PrintReceipt == nil || *req.PrintReceipt,
		PrintKitchen: req.PrintKitchen == nil || *req.PrintKitchen,
		Language:     formatter.Language(req.Language),
	}

	result := h.printers.ForStore(storeID).PrintOrderFull(c.Request.Context(), order, opts)

	h.logger.Info("Order print finished",
		slog.String("store_id", storeID),
		slog.String("order_id", order.OrderID),
		slog.Any("receipt_printed", result.ReceiptPrinted),
		slog.Any("kitchen_slip_printed", result.KitchenSlipPrinted),
	)

	c.JSON(http.StatusOK, dto.PrintOrderResponse{
		OrderID: order.OrderID,
		Result:  result,
	})
}
