package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paysync/internal/models"
	"paysync/internal/payment"
)

func successResponse(c echo.Context, msg string, obj interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, status int, msg string) error {
	return c.JSON(status, models.APIResponse{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}

// failResponse maps a service error onto an HTTP status. Internal errors are
// logged and hidden from the caller.
func failResponse(c echo.Context, logger *zap.Logger, err error) error {
	kind := payment.KindOf(err)
	status := statusFor(kind)
	if kind == payment.KindInternal {
		logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		return errorResponse(c, status, "internal error")
	}
	return c.JSON(status, models.APIResponse{
		Status: false,
		Msg:    err.Error(),
		Obj:    map[string]string{"kind": kind.String()},
	})
}

func statusFor(kind payment.Kind) int {
	switch kind {
	case payment.KindNotFound:
		return http.StatusNotFound
	case payment.KindValidation:
		return http.StatusUnprocessableEntity
	case payment.KindConflict, payment.KindReconciliation:
		return http.StatusConflict
	case payment.KindAuth:
		return http.StatusUnauthorized
	case payment.KindUnavailable:
		return http.StatusServiceUnavailable
	case payment.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}
