package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// BaseResponse is the uniform HTTP response envelope.
type BaseResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func OK[T any](c *fiber.Ctx, message string, data T) error {
	return c.Status(fiber.StatusOK).JSON(BaseResponse[T]{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(BaseResponse[any]{
		Success: false,
		Message: message,
	})
}

// AppError carries an HTTP status through handler returns.
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(status int, message string) *AppError {
	return &AppError{Status: status, Message: message}
}

// ErrorHandlerMiddleware converts returned errors into BaseResponse bodies
// so handlers can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			return Fail(c, appErr.Status, appErr.Message)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return Fail(c, fiberErr.Code, fiberErr.Message)
		}

		return Fail(c, fiber.StatusInternalServerError, err.Error())
	}
}
