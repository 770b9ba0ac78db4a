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
// Struct tag validation is declarative via go-playground/validator; rules
// that cannot be expressed in tags follow as custom checks.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Device.Type == "badger" && cfg.Device.Badger.Path == "" {
		return fmt.Errorf("device.badger.path: required when device.type is badger")
	}
	if cfg.Cache.Sectors > int(cfg.Device.SectorCount) {
		return fmt.Errorf("cache.sectors: cache (%d) larger than the device (%d sectors)",
			cfg.Cache.Sectors, cfg.Device.SectorCount)
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
