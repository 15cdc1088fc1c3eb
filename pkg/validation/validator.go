package validation

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		registerCustomValidators(validate)
	})
	return validate
}

// ValidateStruct validates a struct against its validation tags and
// returns a *ValidationError with field-level messages on failure
func ValidateStruct(s interface{}) error {
	if err := Validator().Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			return NewValidationError(errs)
		}
		return err
	}
	return nil
}

// RegisterGinValidators installs the custom validators on gin's binding
// engine so `binding:` tags can use them. Call once at startup.
func RegisterGinValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidators(v)
	}
}

func registerCustomValidators(v *validator.Validate) {
	// lonlat validates a [longitude, latitude] pair
	_ = v.RegisterValidation("lonlat", func(fl validator.FieldLevel) bool {
		pair, ok := fl.Field().Interface().([2]float64)
		if !ok {
			return false
		}
		return pair[0] >= -180 && pair[0] <= 180 && pair[1] >= -90 && pair[1] <= 90
	})
}
