// Package validation binds and validates JSON request bodies
package validation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the request body into T and validates it. Failures are 400s.
func Bind[T any](c echo.Context) (T, error) {
	var req T
	if err := c.Bind(&req); err != nil {
		return req, httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

// Struct validates a value against its validate tags
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, Message(err))
	}
	return nil
}

// Message renders validator errors one rule per field
func Message(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s failed rule '%s'", fe.Namespace(), rule))
	}
	return strings.Join(parts, "; ")
}
