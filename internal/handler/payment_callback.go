package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/payment"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// maxWebhookBody bounds how much of a webhook body is read.
const maxWebhookBody = 1 << 20

// PaymentCallbackHandler receives gateway webhooks.
type PaymentCallbackHandler struct {
	pipeline *payment.WebhookPipeline
	logger   *zap.Logger
}

func NewPaymentCallbackHandler(pipeline *payment.WebhookPipeline, logger *zap.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{pipeline: pipeline, logger: logger}
}

// RazorpayWebhook answers 200 for anything the gateway should stop
// retrying, 400 for deliveries that will never verify or parse, and 500
// for transient failures so the gateway redelivers.
func (h *PaymentCallbackHandler) RazorpayWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.APIResponse{Status: false, Msg: "unreadable body"})
	}
	if len(body) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, models.APIResponse{Status: false, Msg: "body too large"})
	}

	outcome, err := h.pipeline.Handle(c.Request().Context(), body, c.Request().Header.Get(SignatureHeader))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, models.APIResponse{Status: true, Msg: outcome.String()})
	case errors.Is(err, payment.ErrInvalidWebhookSignature), errors.Is(err, payment.ErrMalformedWebhookPayload):
		return c.JSON(http.StatusBadRequest, models.APIResponse{Status: false, Msg: err.Error()})
	default:
		// Details are logged by the pipeline.
		return c.JSON(http.StatusInternalServerError, models.APIResponse{Status: false, Msg: "temporary failure"})
	}
}
