package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/khata-ledger/internal/models"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names in errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimal.Decimal has no usable kind for the built-in gt/min tags.
	if err := v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && models.CheckAmount(d) == nil
	}); err != nil {
		panic(fmt.Sprintf("register positive_decimal: %v", err))
	}
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// Unknown fields are rejected, so balance fields cannot be smuggled into a
// customer update. Every failure wraps models.ErrValidation.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("%w: Content-Type must be application/json", models.ErrValidation)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", models.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err)
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", models.ErrValidation, describe(verrs[0]))
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", field)
	case "max":
		return fmt.Sprintf("'%s' must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("'%s' must be at least %s characters", field, fe.Param())
	case "numeric":
		return fmt.Sprintf("'%s' must contain only digits", field)
	case "positive_decimal":
		return fmt.Sprintf("'%s' must be a positive amount with at most %d decimal places and %d digits before the point",
			field, models.AmountScale, models.MaxAmountDigits)
	default:
		return fmt.Sprintf("'%s' failed '%s' check", field, fe.Tag())
	}
}
