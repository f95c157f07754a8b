package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("booking_status", validateBookingStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationErrors flattens validator errors into a field->message map
// for the response envelope.
func ValidationErrors(err error) map[string]string {
	details := make(map[string]string)

	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			field := strings.ToLower(verr.Field())
			details[field] = "failed on '" + verr.Tag() + "' validation"
		}
		return details
	}

	details["request"] = err.Error()
	return details
}

func validateBookingStatus(fl validator.FieldLevel) bool {
	status := fl.Field().String()
	switch status {
	case "pending", "accepted", "rejected", "cancelled":
		return true
	}
	return false
}
