package router

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

// RecoveryMiddleware answers a panic with a plain 500 and logs the value with
// its stack. Register it before the routes.
func RecoveryMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Print(c).WithField("stack", string(debug.Stack())).Error(fmt.Sprintf("panic recovered: %v", rec))
				err = ResponseInternalError(c, "")
			}
		}()
		return c.Next()
	}
}
