package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

type Response struct {
	Status  bool        `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func logSuccess(c *fiber.Ctx, code int, message string) {
	statusMessage := http.StatusText(code)

	if statusMessage == message || c.OriginalURL() == BaseURL {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, statusMessage))
	} else {
		log.Print(c).Info(fmt.Sprintf("%d %v", code, message))
	}
}

func logError(c *fiber.Ctx, code int, message string) {
	line := fmt.Sprintf("%d %v", code, message)
	if code >= http.StatusInternalServerError {
		log.Print(c).Error(line)
	} else {
		log.Print(c).Warn(line)
	}
}

func success(c *fiber.Ctx, code int, message string, data interface{}) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	response := Response{
		Status:  true,
		Code:    code,
		Message: message,
		Data:    data,
	}

	logSuccess(c, response.Code, response.Message)
	return c.Status(response.Code).JSON(response)
}

func failure(c *fiber.Ctx, code int, message string, data interface{}) error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(code)
	}
	response := Response{
		Status:  false,
		Code:    code,
		Message: message,
		Data:    data,
		Error:   message,
	}

	logError(c, response.Code, response.Message)
	return c.Status(response.Code).JSON(response)
}

func ResponseSuccess(c *fiber.Ctx, message string) error {
	return success(c, http.StatusOK, message, nil)
}

func ResponseSuccessWithData(c *fiber.Ctx, message string, data interface{}) error {
	return success(c, http.StatusOK, message, data)
}

func ResponseSuccessWithHTML(c *fiber.Ctx, html string) error {
	logSuccess(c, http.StatusOK, http.StatusText(http.StatusOK))
	c.Type("html", "utf-8")
	return c.Status(http.StatusOK).SendString(html)
}

func ResponseCreatedWithData(c *fiber.Ctx, message string, data interface{}) error {
	return success(c, http.StatusCreated, message, data)
}

func ResponseAcceptedWithData(c *fiber.Ctx, message string, data interface{}) error {
	return success(c, http.StatusAccepted, message, data)
}

func ResponseNotFound(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusNotFound, message, nil)
}

func ResponseUnauthorized(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusUnauthorized, message, nil)
}

func ResponseForbidden(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusForbidden, message, nil)
}

func ResponseBadRequest(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusBadRequest, message, nil)
}

func ResponseConflict(c *fiber.Ctx, message string, data interface{}) error {
	return failure(c, http.StatusConflict, message, data)
}

func ResponseTooManyRequests(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusTooManyRequests, message, nil)
}

func ResponseInternalError(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusInternalServerError, message, nil)
}

func ResponseBadGateway(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusBadGateway, message, nil)
}

func ResponseServiceUnavailable(c *fiber.Ctx, message string) error {
	return failure(c, http.StatusServiceUnavailable, message, nil)
}

// ResponseError answers with the status mapped from err.
func ResponseError(c *fiber.Ctx, err error) error {
	return failure(c, ErrorStatus(err), err.Error(), nil)
}
