package router

import (
	"github.com/gofiber/fiber/v2"
)

// HttpErrorHandler renders errors escaping the handlers in the common
// response envelope.
func HttpErrorHandler(c *fiber.Ctx, err error) error {
	return ResponseError(c, err)
}

// HttpNotFound answers unmatched routes.
func HttpNotFound(c *fiber.Ctx) error {
	return ResponseNotFound(c, "route "+c.Method()+" "+c.Path()+" not found")
}
