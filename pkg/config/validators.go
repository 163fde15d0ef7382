package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// calibre custom-field lookups always start with # followed by a lowercase
// identifier, e.g. #mm_collections.
var customFieldPattern = regexp.MustCompile(`^#[a-z][a-z0-9_]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("customfield", func(fl validator.FieldLevel) bool {
		return customFieldPattern.MatchString(fl.Field().String())
	})
	return v
}

func validateUserConfig(userConfig *UserConfig) error {
	if err := validate.Struct(userConfig); err != nil {
		return errors.Wrap(err, "invalid user config")
	}
	return nil
}
