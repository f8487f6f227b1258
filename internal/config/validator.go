package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers accessgate-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if v == nil {
		return errors.New("nil validator")
	}
	// store_dsn: sqlite and postgres need a DSN.
	v.RegisterStructValidation(validateStoreDSN, StoreConfig{})
	return nil
}

func validateStoreDSN(sl validator.StructLevel) {
	store := sl.Current().Interface().(StoreConfig)
	if store.Driver == DriverMemory || store.Driver == "" {
		return
	}
	if strings.TrimSpace(store.DSN) == "" {
		sl.ReportError(store.DSN, "DSN", "DSN", "store_dsn", store.Driver)
	}
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterCustomValidators(v); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
		return errors.New("cache.redis.addr is required when cache.backend is redis")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "store_dsn":
		return fmt.Sprintf("%s is required for driver %q", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
