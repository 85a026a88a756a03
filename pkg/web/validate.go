package web

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// validate checks request bodies; field errors are keyed by JSON name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requestError is a malformed or invalid request body.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string {
	return e.msg
}

// bind parses the body into req and validates it.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return &requestError{msg: "invalid request body: " + err.Error()}
	}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return &requestError{msg: "validation failed", fields: fieldMessages(fieldErrs)}
		}
		return &requestError{msg: err.Error()}
	}
	return nil
}

func fieldMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = "is required"
		case "min":
			out[fe.Field()] = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			out[fe.Field()] = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			out[fe.Field()] = fmt.Sprintf("must be one of %s", fe.Param())
		default:
			out[fe.Field()] = "is invalid"
		}
	}
	return out
}
