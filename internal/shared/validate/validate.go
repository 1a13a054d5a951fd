// Package validate runs struct-tag validation and reports failures as
// field-level apperr validation errors keyed by JSON field name.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"esign-backend/internal/shared/apperr"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return v
}

// Struct validates s using its `validate` tags.
func Struct(s any) error {
	return translate(instance().Struct(s), "")
}

// Var validates a single value against a tag expression, reporting failures
// under field.
func Var(field string, value any, tag string) error {
	return translate(instance().Var(value, tag), field)
}

func translate(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fieldPath(fe)
		}
		out = append(out, apperr.FieldError{Field: name, Message: message(fe)})
	}
	return apperr.Validation(out...)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
