package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var handleRegex = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Validator is a wrapper around the validator library with the project's
// custom tags registered.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance. Besides the built-in tags it knows
// "handle", an X account name without the leading @.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handleRegex.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("validation failed: %s: %w", strings.Join(msgs, "; "), err)
	}
	return fmt.Errorf("validation failed: %w", err)
}

// ValidateVar validates a single value against a tag expression.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	if err := v.validate.Var(field, tag); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
