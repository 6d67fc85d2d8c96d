package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"inventory/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler converts errors returned by handlers and middleware into a JSON
// body {"message": ...} with the status of the error kind.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fields FieldErrors
		if errors.As(err, &fields) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": fields.Error(),
				"errors":  fields,
			})
		}

		status, message := statusOf(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
				zap.Error(err),
			)
		}
		return c.Status(status).JSON(fiber.Map{"message": message})
	}
}

func statusOf(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		return fiber.StatusInternalServerError, "Something went wrong, please try again later"
	}

	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidCredentials):
		return fiber.StatusBadRequest, svcErr.Error()
	case errors.Is(err, services.ErrUnauthorized):
		return fiber.StatusUnauthorized, svcErr.Error()
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, svcErr.Error()
	default:
		return fiber.StatusInternalServerError, svcErr.Error()
	}
}

// FieldErrors reports request fields that failed validation.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	return "Validation failed"
}

// validationFailed turns a validator error into FieldErrors.
func validationFailed(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	fields := make(FieldErrors, len(validationErrors))
	for _, e := range validationErrors {
		fields[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return fields
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
