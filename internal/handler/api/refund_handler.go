package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/payment"
	"paysync/internal/repository"
)

// RefundHandler serves operator endpoints.
type RefundHandler struct {
	refunds *payment.RefundOrchestrator
	store   *repository.Store
	logger  *zap.Logger
}

func NewRefundHandler(refunds *payment.RefundOrchestrator, store *repository.Store, logger *zap.Logger) *RefundHandler {
	return &RefundHandler{refunds: refunds, store: store, logger: logger}
}

// Refund issues a refund against an order's payment.
// POST /api/admin/refunds
func (h *RefundHandler) Refund(c echo.Context) error {
	var req models.RefundOrderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.OrderID == 0 {
		return errorResponse(c, http.StatusUnprocessableEntity, "order_id is required")
	}

	res, err := h.refunds.Refund(c.Request().Context(), req.OrderID, req.Amount, payment.RefundOptions{
		CancelOrder: req.CancelOrder,
		NotifyBuyer: req.NotifyBuyer,
		Reason:      req.Reason,
	})
	if err != nil {
		return failResponse(c, h.logger, err)
	}

	return successResponse(c, "Refund issued", models.RefundOrderResponse{
		RefundID:     res.RefundID,
		RefundStatus: res.RefundStatus,
		Amount:       res.Amount,
	})
}

// Reconciliation lists payments flagged for manual review.
// GET /api/admin/reconciliation?limit=50
func (h *RefundHandler) Reconciliation(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	bindings, err := h.store.Bindings.ListNeedingReconciliation(limit)
	if err != nil {
		return failResponse(c, h.logger, err)
	}
	return successResponse(c, "Successful", map[string]interface{}{
		"bindings": bindings,
		"count":    len(bindings),
	})
}
