package core

import (
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"promptforge/internal/types"
)

// Validator wraps go-playground/validator to translate struct tag failures
// into AppErrors with field-level details.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(),
		logger:   logger,
	}
}

// ValidateStruct validates the struct against its `validate` tags. On failure
// it returns a validation AppError whose details map field names (lowercased)
// to the failed rule, suitable for direct rendering by the client.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError: the caller passed a non-struct. This is a
		// programming error, surfaced as internal.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation received a non-struct value", err)
	}

	details := make(map[string]any, len(validationErrs))
	for _, fe := range validationErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationFieldFailed,
		"request failed validation",
		err,
		details,
	)
}
