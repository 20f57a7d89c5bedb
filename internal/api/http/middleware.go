package http

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/observability"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

// MiddlewareConfig holds the knobs for the global middleware chain.
type MiddlewareConfig struct {
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	RequestTimeout time.Duration
	Origins        []string
	RateLimit      RateLimit
}

// RateLimit describes one fixed-window limiter. Storage nil keeps counters in memory.
type RateLimit struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage
	Prefix  string
}

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	app.Use(requestid.New())
	// Outside error handling so the logged status is the rendered one.
	app.Use(observability.RequestLogger(cfg.Logger, cfg.Metrics))
	app.Use(corsMiddleware(cfg.Origins))
	app.Use(errorHandlingMiddleware(cfg.Logger, cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.RequestTimeout))
	}
	if cfg.RateLimit.Max > 0 {
		app.Use(RateLimiter(cfg.RateLimit))
	}
}

// ErrorHandler renders errors that escape the middleware chain.
func ErrorHandler(logger *zap.Logger, metrics *observability.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		writeError(c, logger, metrics, err)
		return nil
	}
}

// RateLimiter limits requests per client IP within a fixed window.
func RateLimiter(rl RateLimit) fiber.Handler {
	prefix := rl.Prefix
	if prefix == "" {
		prefix = "global"
	}
	return limiter.New(limiter.Config{
		Max:        rl.Max,
		Expiration: rl.Window,
		Storage:    rl.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return prefix + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewTooManyRequests("too many requests")
		},
	})
}

func corsMiddleware(origins []string) fiber.Handler {
	if len(origins) == 0 {
		return cors.New()
	}
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
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
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				writeError(c, logger, metrics, err)
				err = nil
			}
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) {
	domainErr := toDomainError(err)
	metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(domainErr))
	}
	response := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		response["details"] = domainErr.Details
	}
	c.Status(domainErr.HTTPStatus)
	_ = c.JSON(response)
}

// toDomainError also maps framework errors such as unknown routes and
// oversized bodies onto the shared error codes.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return apperrors.ToDomainError(err)
	}
	switch {
	case fiberErr.Code == fiber.StatusNotFound:
		return apperrors.NewDomainError("NOT_FOUND", fiberErr.Message, fiberErr.Code, nil)
	case fiberErr.Code == fiber.StatusUnauthorized:
		return apperrors.NewDomainError("UNAUTHORIZED", fiberErr.Message, fiberErr.Code, nil)
	case fiberErr.Code == fiber.StatusForbidden:
		return apperrors.NewDomainError("FORBIDDEN", fiberErr.Message, fiberErr.Code, nil)
	case fiberErr.Code == fiber.StatusTooManyRequests:
		return apperrors.NewDomainError("RATE_LIMITED", fiberErr.Message, fiberErr.Code, nil)
	case fiberErr.Code >= fiber.StatusBadRequest && fiberErr.Code < fiber.StatusInternalServerError:
		return apperrors.NewDomainError("VALIDATION_FAILED", fiberErr.Message, fiberErr.Code, nil)
	default:
		return apperrors.ToDomainError(err)
	}
}
