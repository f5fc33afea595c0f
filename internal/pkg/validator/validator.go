package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"facture-workflow/internal/core/domain"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields under their JSON names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return domain.Role(fl.Field().String()).IsValid()
		})
		_ = validate.RegisterValidation("legal_form", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			return v == "" || domain.LegalForm(v).IsValid()
		})
		_ = validate.RegisterValidation("modality", func(fl validator.FieldLevel) bool {
			v := fl.Field().String()
			if v == "" {
				return true
			}
			_, ok := domain.ParseModality(v)
			return ok
		})
	})
	return validate
}

// Struct validates s against its `validate` tags. Failures come back as
// domain.ValidationErrors keyed by JSON field name.
func Struct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := domain.ValidationErrors{}
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "nefield":
		return "must differ from " + strings.ToLower(fe.Param())
	case "role":
		return "must be one of U1, V1, V2, T1, ADMIN"
	case "legal_form":
		return "is not a recognised legal form"
	case "modality":
		return "must be one of DELAI_30, DELAI_60, DELAI_90, DELAI_120"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}
