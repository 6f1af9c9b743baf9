package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Walrus/internal/pkg/provider"
)

// Response is the envelope of every API answer.
type Response struct {
	Code    provider.ResponseCode `json:"code"`
	Message string                `json:"message"`
	Data    interface{}           `json:"data"`
	Details interface{}           `json:"details"`
}

// OK writes data with the success code.
func OK(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Code:    provider.CodeSuccess,
		Message: provider.CodeSuccess.Message(),
		Data:    data,
	})
}

// Fail maps err to its response code and HTTP status. Unknown errors are
// logged and answered as internal errors without their text.
func Fail(c *fiber.Ctx, err error) error {
	e := provider.AsError(err)
	msg := e.Message
	if msg == "" {
		msg = e.Code.Message()
	}
	if e.Code == provider.CodeInternal {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		msg = provider.CodeInternal.Message()
	}
	var details interface{}
	if len(e.Details) > 0 {
		details = e.Details
	}
	return c.Status(e.Code.HTTPStatus()).JSON(Response{
		Code:    e.Code,
		Message: msg,
		Details: details,
	})
}

// Unauthorized answers requests without valid credentials.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Fail(c, provider.NewError(provider.CodeUnauthorized, message, nil))
}

// Forbidden answers authenticated requests lacking the staff role.
func Forbidden(c *fiber.Ctx, message string) error {
	return Fail(c, provider.NewError(provider.CodeForbidden, message, nil))
}

// BadRequest wraps a body parsing or validation failure.
func BadRequest(c *fiber.Ctx, err error) error {
	return Fail(c, &provider.Error{
		Code:    provider.CodeValidation,
		Message: "invalid request",
		Details: map[string]any{"error": err.Error()},
	})
}
