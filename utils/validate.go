package utils

import (
	"errors"
	"fmt"
	"plantify/apperr"
	"plantify/models"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRe  = regexp.MustCompile(`^[6-9]\d{9}$`)
	postalRe = regexp.MustCompile(`^\d{5,6}$`)
	gstinRe  = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
)

// Validator wraps validator.Validate with the marketplace's custom tags
type Validator struct {
	v *validator.Validate
}

// NewValidator registers json field names and the custom tags phone_in,
// postal_code, gstin and price2dp
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Empty values pass; combine with required where the field is mandatory.
	_ = v.RegisterValidation("phone_in", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || phoneRe.MatchString(s)
	})
	_ = v.RegisterValidation("postal_code", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || postalRe.MatchString(s)
	})
	_ = v.RegisterValidation("gstin", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || s == "N/A" || gstinRe.MatchString(s)
	})
	_ = v.RegisterValidation("price2dp", func(fl validator.FieldLevel) bool {
		return models.ValidPrice(fl.Field().Float())
	})

	return &Validator{v: v}
}

// Struct validates s and returns an apperr validation error describing the
// first failing fields
func (val *Validator) Struct(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, "Invalid input", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": "+validationMessage(fe))
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", e.Param())
		}
		return "must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "url", "http_url":
		return "invalid URL"
	case "phone_in":
		return "please enter a valid 10-digit phone number"
	case "postal_code":
		return "please enter a valid postal code"
	case "gstin":
		return "invalid GST number"
	case "price2dp":
		return "price must be non-negative with at most 2 decimal places"
	default:
		return "invalid value"
	}
}
