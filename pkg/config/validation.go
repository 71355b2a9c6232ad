package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Struct tags cover value constraints; custom rules cover what tags cannot
// express. Backend-specific required fields are checked later, at
// construction time, so the error can name exactly the missing fields for
// the offending type.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	for i, repo := range cfg.Repos {
		// Legacy entries carry nothing but a name and a password; both
		// are needed to resolve against the server inventory.
		if repo.Type == "" {
			if repo.Name == "" {
				return fmt.Errorf("repos[%d]: legacy entry requires a name", i)
			}
			if repo.Password == "" {
				return fmt.Errorf("repos[%d]: legacy entry %q requires a password", i, repo.Name)
			}
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
