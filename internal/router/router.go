package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"paysync/internal/handler"
	"paysync/internal/handler/api"
	"paysync/internal/middleware"
	"paysync/internal/payment"
	"paysync/internal/repository"
)

// Services are the payment components the routes expose.
type Services struct {
	Store    *repository.Store
	Binder   *payment.Binder
	Verifier *payment.Verifier
	Pipeline *payment.WebhookPipeline
	Refunds  *payment.RefundOrchestrator
}

type Options struct {
	APIKey     string
	CORSOrigin string
	Deduper    middleware.EventDeduper
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, svc Services, opts Options, logger *zap.Logger) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	// Handlers
	paymentHandler := api.NewPaymentHandler(svc.Binder, svc.Verifier, logger)
	refundHandler := api.NewRefundHandler(svc.Refunds, svc.Store, logger)
	callbackHandler := handler.NewPaymentCallbackHandler(svc.Pipeline, logger)

	e.GET("/health", func(c echo.Context) error {
		sqlDB, err := svc.Store.DB().DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Browser checkout
	checkout := e.Group("/api/checkout")
	checkout.Use(middleware.CORS(opts.CORSOrigin))
	checkout.POST("/orders", paymentHandler.CreateOrder)
	checkout.POST("/verify", paymentHandler.Verify)
	checkout.OPTIONS("/orders", paymentHandler.CreateOrder)
	checkout.OPTIONS("/verify", paymentHandler.Verify)

	// Operator API
	admin := e.Group("/api/admin")
	admin.Use(middleware.APIAuth(opts.APIKey))
	admin.POST("/refunds", refundHandler.Refund)
	admin.GET("/reconciliation", refundHandler.Reconciliation)

	// Gateway webhooks
	paymentGroup := e.Group("/payment")
	paymentGroup.Use(middleware.WebhookEventDedup(opts.Deduper, logger))
	paymentGroup.POST("/razorpay/webhook", callbackHandler.RazorpayWebhook)
}
