package models

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that understands the request structs in
// this package. maxbytes=N limits the UTF-8 length of a string, where max=N
// counts characters; passwords need the former because bcrypt stops at 72 bytes.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= n
	})
	return v
}
