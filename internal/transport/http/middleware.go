package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"mindquest-service/internal/domain"
)

const (
	localUserID    = "userID"
	localRequestID = "requestid"
)

// AccessParser resolves an access token to a user id.
type AccessParser interface {
	ParseAccess(token string) (int64, error)
}

// requireAuth reads the bearer token and stores the caller's id in Locals.
func requireAuth(tokens AccessParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
			return fmt.Errorf("missing bearer token: %w", domain.ErrUnauthenticated)
		}
		userID, err := tokens.ParseAccess(strings.TrimSpace(authz[7:]))
		if err != nil {
			return err
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// PermissionChecker decides whether a user may perform an action.
type PermissionChecker interface {
	Authorize(ctx context.Context, userID int64, p domain.Permission) error
}

// requirePermission must run after requireAuth.
func requirePermission(users PermissionChecker, p domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := users.Authorize(c.UserContext(), currentUser(c), p); err != nil {
			return err
		}
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) int64 {
	id, _ := c.Locals(localUserID).(int64)
	return id
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

func requestLogger(log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			status = statusFor(err)
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		log.Info("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID(c),
		)
		return err
	}
}

// perUserLimiter caps write-heavy endpoints per authenticated user.
func perUserLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := currentUser(c); id > 0 {
				return "user:" + strconv.FormatInt(id, 10)
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(envelope{Message: "too many requests, try again later"})
		},
	})
}
