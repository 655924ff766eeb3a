package validator

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/casino-ledger/internal/model"
)

// New creates a new validator instance with custom validations registered.
// Field names in errors are the JSON names of the request DTOs.
func New() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// notblank rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// game accepts the supported game names, case-insensitively
	_ = v.RegisterValidation("game", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, valid := model.ParseGame(str)
		return valid
	})

	// money accepts finite amounts within the storable range
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		f, ok := fl.Field().Interface().(float64)
		if !ok {
			return false
		}
		return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) < model.MaxMoney
	})

	return v
}
