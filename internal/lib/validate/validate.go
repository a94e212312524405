// Package validate checks tagged input structs with go-playground/validator
// and turns its errors into per-field messages for forms and the API.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9 ()-]+$`)
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())

	// Field errors are keyed by the form field name.
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	must(val.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	}))
	must(val.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len([]rune(s)) < 8 {
			return false
		}
		return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0
	}))
	must(val.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phoneRe.MatchString(s)
	}))

	return val
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s against its validate tags.
func Struct(s any) error {
	return v.Struct(s)
}

// Var validates a single value against tag.
func Var(field any, tag string) error {
	return v.Var(field, tag)
}

// IsInvalid reports whether err carries field validation errors.
func IsInvalid(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// Messages maps form field names to a human readable message. It returns nil
// when err has no field errors.
func Messages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	msgs := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, ok := msgs[fe.Field()]; ok {
			continue
		}
		msgs[fe.Field()] = message(fe)
	}

	return msgs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "password":
		return "This password must contain at least 8 characters and can't be entirely numeric."
	case "eqfield":
		return "The two password fields didn't match."
	case "phone":
		return "Enter a valid phone number."
	case "oneof":
		return "Select a valid choice."
	case "datetime":
		return "Enter a valid date."
	default:
		return "Enter a valid value."
	}
}
