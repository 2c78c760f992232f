package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Ledger entry type validation
	validate.RegisterValidation("entry_type", func(fl validator.FieldLevel) bool {
		entryType := fl.Field().String()
		validTypes := []string{"deposit", "purchase", "refund", "withdrawal", "bonus", "refund_reversal", ""}
		for _, t := range validTypes {
			if entryType == t {
				return true
			}
		}
		return false
	})

	// Refund status validation
	validate.RegisterValidation("refund_status", func(fl validator.FieldLevel) bool {
		status := fl.Field().String()
		validStatuses := []string{"pending", "approved", "processing", "completed", "failed", "rejected", "cancelled", ""}
		for _, s := range validStatuses {
			if status == s {
				return true
			}
		}
		return false
	})

	// Decimal amount string validation (positive, at most 2 fraction digits)
	validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		amount := fl.Field().String()
		if amount == "" {
			return false
		}
		dot := strings.IndexByte(amount, '.')
		if dot == 0 || strings.HasPrefix(amount, "-") {
			return false
		}
		if dot >= 0 && len(amount)-dot-1 > 2 {
			return false
		}
		for i, c := range amount {
			if c == '.' && i == dot {
				continue
			}
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid UUID format"
		case "entry_type":
			errors[field] = "Invalid entry type. Must be: deposit, purchase, refund, withdrawal, bonus, or refund_reversal"
		case "refund_status":
			errors[field] = "Invalid refund status"
		case "money":
			errors[field] = "Invalid amount. Must be a positive decimal with at most 2 fraction digits"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
