package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"agriconecta-api/internal/apperror"

	"github.com/go-playground/validator/v10"
)

var aoPhonePattern = regexp.MustCompile(`^\+244\d{9}$`)

// NormalizePhone quita espacios: "+244 923 456 789" -> "+244923456789".
func NormalizePhone(raw string) string {
	return strings.Join(strings.Fields(raw), "")
}

// IsAngolanPhone acepta +244 seguido de 9 dígitos.
func IsAngolanPhone(raw string) bool {
	return aoPhonePattern.MatchString(NormalizePhone(raw))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("ao_phone", func(fl validator.FieldLevel) bool {
		return IsAngolanPhone(fl.Field().String())
	})
	return v
}

// validateStruct devuelve *ValidationError con todos los campos violados, o nil.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: fieldMessage(fe),
		})
	}
	return &ValidationError{Fields: fields}
}

// "CheckoutRequest.items[0].quantity" -> "items[0].quantity"
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "campo obrigatório"
	case "email":
		return "email inválido"
	case "ao_phone":
		return "telefone deve ter o formato +244 seguido de 9 dígitos"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("deve ter pelo menos %s elemento(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("deve ter pelo menos %s caracteres", fe.Param())
		}
		return fmt.Sprintf("deve ser no mínimo %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("deve ter no máximo %s caracteres", fe.Param())
		}
		return fmt.Sprintf("deve ser no máximo %s", fe.Param())
	case "gt":
		return fmt.Sprintf("deve ser maior que %s", fe.Param())
	case "gte":
		return fmt.Sprintf("deve ser maior ou igual a %s", fe.Param())
	case "eq", "oneof":
		return "valor não permitido"
	}
	return "valor inválido"
}
