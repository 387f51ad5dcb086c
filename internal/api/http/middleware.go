package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-shop-service/internal/api/dto"
	"github.com/spec-kit/repair-shop-service/internal/observability"
	apperrors "github.com/spec-kit/repair-shop-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

// ErrorHandler renders errors that escape the middleware chain, such as
// oversized bodies rejected before routing.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message, _ := renderError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", zap.Error(err))
		}
		return c.Status(status).JSON(dto.ErrorResponse{Message: message})
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				status, message, code := renderError(err)
				metrics.RecordError(observability.RoutePattern(c), c.Method(), code)
				if status >= http.StatusInternalServerError {
					logger.Error("request failed", zap.Error(err))
				}
				c.Status(status)
				_ = c.JSON(dto.ErrorResponse{Message: message})
				err = nil
			}
		}()
		return c.Next()
	}
}

// renderError returns the status, the envelope message and a metrics code.
func renderError(err error) (int, string, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fmt.Sprintf("%s: %s", http.StatusText(fiberErr.Code), fiberErr.Message), http.StatusText(fiberErr.Code)
	}
	domainErr := apperrors.ToDomainError(err)
	return domainErr.HTTPStatus(), domainErr.Envelope(), domainErr.Kind.String()
}
