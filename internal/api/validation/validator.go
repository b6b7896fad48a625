package validation

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// DNS label: letters, digits, hyphens; no leading/trailing hyphen.
var subdomainRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)

// RegisterValidators registers custom validators on gin's binding engine.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("subdomain", validateSubdomain)
	}
}

func validateSubdomain(fl validator.FieldLevel) bool {
	return subdomainRegex.MatchString(fl.Field().String())
}
