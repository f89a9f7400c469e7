package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "wavecli/internal/errors"
	"wavecli/internal/waves"
)

// newRequestValidator builds the validator shared by the request types in
// this package. It registers the same custom tags as the HTTP validation
// middleware so the two layers agree on what a wave token or a dataset
// name looks like, and reports field names by their JSON tag.
func newRequestValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("wavetoken", func(fl validator.FieldLevel) bool {
		return waves.ValidTokenSyntax(fl.Field().String())
	})
	v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if name == "" {
			return false
		}
		if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
			return false
		}
		return len(name) <= 255
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// validateRequest runs struct validation and converts failures into the
// API error shape the HTTP layer renders directly.
func validateRequest(v *validator.Validate, req interface{}) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	details := make([]apierrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		details = append(details, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return apierrors.NewValidationErrors(details)
}

// formatFieldError renders one validator failure as a client-facing
// message.
func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "wavetoken":
		return fmt.Sprintf("%s must be %q or a pair like \"w1_to_w2\"", field, waves.AllWavesToken)
	case "filename":
		return fmt.Sprintf("%s must be a valid filename", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
