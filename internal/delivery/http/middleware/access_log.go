package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// CtxRequestIDKey is where the access log stores the request id for
// downstream handlers.
const CtxRequestIDKey = "request_id"

type AccessLogMiddleware struct {
	logger *log.Logger
}

func NewAccessLogMiddleware(logger *log.Logger) *AccessLogMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	return &AccessLogMiddleware{logger: logger}
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
			c.Set("X-Request-ID", reqID)
		}
		c.Locals(CtxRequestIDKey, reqID)

		err := c.Next()

		if m != nil && m.logger != nil {
			m.logger.Printf(
				"http access | req=%s ip=%s method=%s path=%s status=%d latency=%s bytes=%d ua=%q",
				reqID, c.IP(), c.Method(), c.OriginalURL(),
				c.Response().StatusCode(), time.Since(start),
				c.Response().Header.ContentLength(), c.Get("User-Agent"),
			)
		}

		return err
	}
}
