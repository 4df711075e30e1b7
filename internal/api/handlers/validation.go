package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("password_strength", validatePasswordStrength)
}

// validatePasswordStrength requires a lowercase letter, an uppercase letter
// and a digit. Length is checked separately with min.
func validatePasswordStrength(fl validator.FieldLevel) bool {
	var lower, upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateStruct runs the struct's validate tags and returns one entry per
// failing field, or nil when s is valid.
func ValidateStruct(s interface{}) []ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "", Message: "Invalid request"}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	switch field {
	case "email":
		return "Please provide a valid email"
	case "firstName":
		return "First name must be between 2 and 50 characters"
	case "lastName":
		return "Last name must be between 2 and 50 characters"
	}

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", humanize(field))
	case "password_strength":
		return "Password must contain at least one lowercase letter, one uppercase letter, and one number"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", humanize(field), param)
		}
		return fmt.Sprintf("%s must be at least %s", humanize(field), param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", humanize(field), param)
		}
		return fmt.Sprintf("%s must be at most %s", humanize(field), param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", humanize(field), param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", humanize(field), param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", humanize(field), strings.ReplaceAll(param, " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", humanize(field))
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", humanize(field))
	default:
		return fmt.Sprintf("%s is invalid", humanize(field))
	}
}

// humanize turns a camelCase field name into a capitalized phrase.
func humanize(field string) string {
	if field == "" {
		return "Value"
	}
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
			r = unicode.ToLower(r)
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
