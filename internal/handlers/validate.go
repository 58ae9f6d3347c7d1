package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator"
)

var validate = validator.New()

// validationMessage renders the first failures of a request DTO check.
func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "invalid request body"
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := jsonFieldName(fe.Field())
		switch fe.ActualTag() {
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email address", field))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not valid", field))
		}
	}
	return strings.Join(msgs, ", ")
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	if field == "DOB" {
		return "dob"
	}
	return strings.ToLower(field[:1]) + field[1:]
}
