package apperror

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct validation and converts failures to MISSING_INPUT.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return FromValidation(err)
	}
	return nil
}

// FromValidation converts validator errors into a MISSING_INPUT error whose
// "fields" detail maps each failing field to the rule it broke.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MissingInput(err.Error())
	}
	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := lowerFirst(fe.Field())
		fields[name] = fe.Tag()
		names = append(names, name)
	}
	return MissingInput("Invalid or missing fields: "+strings.Join(names, ", ")).With("fields", fields)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
