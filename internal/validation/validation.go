// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"plume/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		// Report fields under their JSON names.
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v using its `validate` tags. Failures come back as a
// VALIDATION_ERROR AppError with one message per invalid field.
func Struct(v any) error {
	err := get().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.NewInternalError(err)
	}

	fields := make(map[string]string, len(fieldErrs))
	first := ""
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, seen := fields[field]; seen {
			continue
		}
		msg := message(fe)
		fields[field] = msg
		if first == "" {
			first = msg
		}
	}

	return &models.AppError{
		Code:    models.CodeValidation,
		Message: first,
		Fields:  fields,
	}
}

// Var validates a single value against tag, reporting it under field.
func Var(field string, value any, tag string) error {
	err := get().Var(value, tag)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return models.NewFieldValidationError(field, message(fieldErrs[0]))
	}
	return models.NewInternalError(err)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Ce champ est obligatoire."
	case "email":
		return "Saisissez une adresse e-mail valide."
	case "alphanumunicode":
		if fe.Field() == "username" {
			return "Le nom d'utilisateur doit être alphanumérique."
		}
		return "Ce champ doit être alphanumérique."
	case "min":
		return fmt.Sprintf("Assurez-vous que ce champ comporte au moins %s caractères.", fe.Param())
	case "max":
		return fmt.Sprintf("Assurez-vous que ce champ comporte au plus %s caractères.", fe.Param())
	case "oneof":
		return fmt.Sprintf("Valeur invalide, choix possibles : %s.", fe.Param())
	default:
		return "Valeur invalide."
	}
}
