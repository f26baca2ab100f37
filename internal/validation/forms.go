// Package validation validates and sanitizes user-submitted form data.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"warbler/internal/models"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest password accepted at signup, login and profile edit.
const MinPasswordLength = 6

// SignupForm is the body of POST /signup.
type SignupForm struct {
	Username string `form:"username" json:"username" validate:"required,max=30"`
	Email    string `form:"email" json:"email" validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
	ImageURL string `form:"image_url" json:"image_url" validate:"omitempty,max=2048"`
}

// LoginForm is the body of POST /login.
type LoginForm struct {
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required,min=6"`
}

// MessageForm is the body of POST /messages/new.
type MessageForm struct {
	Text string `form:"text" json:"text" validate:"required,max=140"`
}

// ProfileForm is the body of POST /users/profile. Password re-authenticates the edit.
type ProfileForm struct {
	Username       string `form:"username" json:"username" validate:"required,max=30"`
	Email          string `form:"email" json:"email" validate:"required,email"`
	ImageURL       string `form:"image_url" json:"image_url" validate:"omitempty,max=2048"`
	HeaderImageURL string `form:"header_image_url" json:"header_image_url" validate:"omitempty,max=2048"`
	Bio            string `form:"bio" json:"bio" validate:"omitempty,max=500"`
	Location       string `form:"location" json:"location" validate:"omitempty,max=100"`
	Password       string `form:"password" json:"password" validate:"required,min=6"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Struct trims string fields of form and validates it.
// The first failing field is reported as a validation AppError.
func Struct(form any) error {
	trimStrings(form)

	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return models.NewValidationError(describe(fieldErrs[0]))
	}
	return models.NewValidationError(err.Error())
}

func describe(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// trimStrings trims surrounding whitespace from every exported string field except passwords.
func trimStrings(form any) {
	v := reflect.ValueOf(form)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() || t.Field(i).Name == "Password" {
			continue
		}
		f.SetString(strings.TrimSpace(f.String()))
	}
}
