package http

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/observability"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// RegisterMiddlewares installs, outermost first: request ids, access
// logging, the request deadline, the error envelope and panic recovery.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New(requestid.Config{ContextKey: observability.RequestIDKey}))
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(deadline(timeout))
	}
	app.Use(errorEnvelope(logger, metrics))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, r any) {
			logger.Error("panic recovered",
				zap.String("request_id", observability.RequestID(c)),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"))
		},
	}))
}

func deadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorEnvelope renders any error returned further down the chain as
// {"error": {code, message, details}} and swallows it.
func errorEnvelope(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		domainErr := apperrors.ToDomainError(err)
		if metrics != nil {
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
		}
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("request_id", observability.RequestID(c)),
				zap.Error(err))
		}
		return writeError(c, domainErr)
	}
}

func writeError(c *fiber.Ctx, e *apperrors.DomainError) error {
	body := fiber.Map{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": body})
}
