package utils

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/scheduling"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidRole      = errors.New("role must be patient or pharmacist")
	ErrLicenseRequired  = errors.New("license number is required for pharmacists")
)

// RegistrationInput is the data checked before an account is created.
type RegistrationInput struct {
	Password        string
	ConfirmPassword string
	Role            models.Role
	LicenseNumber   string
}

// ValidateRegistration runs the pre-flight registration checks. It performs no writes.
func ValidateRegistration(in RegistrationInput) error {
	if len(in.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if in.Password != in.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if !in.Role.Valid() {
		return ErrInvalidRole
	}
	if in.Role == models.RolePharmacist && strings.TrimSpace(in.LicenseNumber) == "" {
		return ErrLicenseRequired
	}
	return nil
}

var registerOnce sync.Once

// RegisterValidators adds the clock and date tags to gin's validator engine.
// It is safe to call more than once and panics if the tags cannot be added.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic(fmt.Sprintf("utils: unexpected binding validator engine %T", binding.Validator.Engine()))
		}
		if err := AddValidations(v); err != nil {
			panic(err)
		}
	})
}

// AddValidations registers the clock and date tags on v.
func AddValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("clock", validateClock); err != nil {
		return fmt.Errorf("register clock validation: %w", err)
	}
	if err := v.RegisterValidation("date", validateDate); err != nil {
		return fmt.Errorf("register date validation: %w", err)
	}
	return nil
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := scheduling.ParseClock(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := scheduling.ParseDate(fl.Field().String(), time.UTC)
	return err == nil
}

// FormatValidationError formats validation errors into a readable string.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		var errorMessages []string
		for _, e := range errs {
			errorMessages = append(errorMessages, describeFieldError(e))
		}
		return strings.Join(errorMessages, ", ")
	}
	return err.Error()
}

func describeFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return e.Field() + " must be a valid email"
	case "clock":
		return e.Field() + " must be HH:MM"
	case "date":
		return e.Field() + " must be YYYY-MM-DD"
	case "oneof":
		return e.Field() + " must be one of " + e.Param()
	default:
		return fmt.Sprintf("%s failed on %s", e.Field(), e.Tag())
	}
}

// BindAndValidate binds the request body to a struct and validates it.
// If validation fails, it sends a BadRequest response and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBindJSON(obj); err != nil {
		badPayload(c, err)
		return false
	}
	return true
}

// BindOptionalJSON is BindAndValidate for requests whose body may be absent.
// An empty body leaves obj untouched, whatever the Content-Length says.
func BindOptionalJSON(c *gin.Context, obj interface{}) bool {
	RegisterValidators()
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		badPayload(c, err)
		return false
	}
	return true
}

func badPayload(c *gin.Context, err error) {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return
	}
	BadRequest(c, "Invalid request payload: "+err.Error())
}
