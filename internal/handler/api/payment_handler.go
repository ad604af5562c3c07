package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/payment"
)

// PaymentHandler serves the browser side of checkout.
type PaymentHandler struct {
	binder   *payment.Binder
	verifier *payment.Verifier
	logger   *zap.Logger
}

func NewPaymentHandler(binder *payment.Binder, verifier *payment.Verifier, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{binder: binder, verifier: verifier, logger: logger}
}

// CreateOrder opens a gateway order for a reserved order.
// POST /api/checkout/orders
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	var req models.CreateCheckoutOrderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	req.OrderShortID = strings.TrimSpace(req.OrderShortID)
	if req.OrderShortID == "" || req.SessionID == "" {
		return errorResponse(c, http.StatusUnprocessableEntity, "order_short_id and session_id are required")
	}

	session, err := h.binder.PrepareCheckout(c.Request().Context(), req.OrderShortID, req.SessionID)
	if err != nil {
		return failResponse(c, h.logger, err)
	}

	return successResponse(c, "Successful", models.CheckoutOrderResponse{
		GatewayOrderID: session.GatewayOrderID,
		Amount:         session.Amount,
		Currency:       session.Currency,
		KeyID:          session.KeyID,
	})
}

// Verify confirms the payment the checkout widget reported.
// POST /api/checkout/verify
func (h *PaymentHandler) Verify(c echo.Context) error {
	var req models.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.OrderShortID == "" || req.RazorpayPaymentID == "" || req.RazorpayOrderID == "" || req.RazorpaySignature == "" {
		return errorResponse(c, http.StatusUnprocessableEntity,
			"order_short_id, razorpay_payment_id, razorpay_order_id and razorpay_signature are required")
	}

	res, err := h.verifier.Verify(c.Request().Context(),
		req.OrderShortID, req.RazorpayPaymentID, req.RazorpayOrderID, req.RazorpaySignature)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureVerificationFailed) {
			return c.JSON(http.StatusUnauthorized, models.APIResponse{
				Status: false,
				Msg:    err.Error(),
				Obj:    models.VerifyPaymentResponse{Verified: false, PaymentStatus: models.PaymentStatusFailed},
			})
		}
		return failResponse(c, h.logger, err)
	}

	msg := "Payment verified"
	if res.AlreadyProcessed {
		msg = "Payment already verified"
	}
	return successResponse(c, msg, models.VerifyPaymentResponse{
		Verified:      res.Verified,
		PaymentStatus: res.PaymentStatus,
		OrderStatus:   res.OrderStatus,
	})
}
