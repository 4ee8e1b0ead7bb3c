package http

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/guttosm/trip-planner/internal/domain/dto"
)

const maxPalletIDLength = 64

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags to gin's validator and
// reports fields by their json or form name.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		_ = v.RegisterValidation("palletid", validatePalletID)
	})
}

func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// validatePalletID accepts a printable id without inner whitespace, at most
// 64 characters once surrounding spaces are trimmed.
func validatePalletID(fl validator.FieldLevel) bool {
	id := strings.TrimSpace(fl.Field().String())
	if id == "" || len(id) > maxPalletIDLength {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func isValidationFailure(err error) bool {
	var fieldErrs validator.ValidationErrors
	var reqErr *dto.ValidationError
	return errors.As(err, &fieldErrs) || errors.As(err, &reqErr)
}
