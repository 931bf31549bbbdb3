package cloakroom

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/hramba/internal/model"
)

// Phone numbers may contain digits, spaces, dashes, parentheses and a
// leading plus, with 7 to 15 digits in total.
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	return v
}

// ValidPhone reports whether s looks like a phone number.
func ValidPhone(s string) bool {
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ', r == '-', r == '(', r == ')':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

// validateDraft checks a draft and returns a *ValidationError listing every
// bad field, or nil.
func (s *Service) validateDraft(d model.ItemDraft) error {
	var fields []FieldError

	err := s.validate.Struct(d)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Reason: reason(fe)})
		}
	} else if err != nil {
		return err
	}

	deposit, err1 := time.Parse(model.DateLayout, d.DepositDate)
	expected, err2 := time.Parse(model.DateLayout, d.ExpectedReturnDate)
	if err1 == nil && err2 == nil && expected.Before(deposit) {
		fields = append(fields, FieldError{
			Field:  "expected_return_date",
			Reason: "must not be before deposit_date",
		})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "phone":
		return "is not a valid phone number"
	case "email":
		return "is not a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "is invalid"
}
