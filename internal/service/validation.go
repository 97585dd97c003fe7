package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefront/internal/model"

	"github.com/go-playground/validator/v10"
)

// FieldError names one field that failed validation and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks req against its validate tags and reports every failing field
// as a single VALIDATION_FAILED business error.
func (s *orderService) validateRequest(req any) error {
	if req == nil {
		return model.NewBusinessError(model.ErrCodeValidation, "request body is required")
	}

	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return fmt.Errorf("failed to validate request: %w", err)
	}

	fields := make([]FieldError, len(invalid))
	for i, fe := range invalid {
		fields[i] = FieldError{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		}
	}

	return &model.BusinessError{
		Code:    model.ErrCodeValidation,
		Message: fmt.Sprintf("request validation failed on %d field(s)", len(fields)),
		Details: fields,
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
