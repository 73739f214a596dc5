// Package validation builds the request validator with the domain tags
// registered.
package validation

import (
	"github.com/go-playground/validator/v10"
)

// New returns a validator with the "cuit" tag registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cuit", validateCUIT)
	return v
}
