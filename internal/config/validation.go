package config

import (
	"errors"
	"fmt"
	"strings"

	"imbridge/internal/session"
)

// ErrInvalidConfig is wrapped by Loader errors for configurations that fail
// validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the failing field names in order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i := range e {
		out[i] = e[i].Field
	}
	return out
}

// ValidateConfig reports every problem in c at once as ValidationErrors.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateHotkeys(&c.Hotkeys)...)
	errs = append(errs, validateKeymap(&c.Keymap)...)
	errs = append(errs, validateStore(&c.Store)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors

	if _, err := session.ParseMode(e.Mode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "engine.mode",
			Message: fmt.Sprintf("invalid mode: %s (valid: sync, async)", e.Mode),
		})
	}

	if e.KeyTimeoutMs < 1 || e.KeyTimeoutMs > 60000 {
		errs = append(errs, *RangeError("engine.key_timeout_ms", 1, 60000))
	}

	if e.ClientName == "" {
		errs = append(errs, *RequiredFieldError("engine.client_name"))
	}

	if _, err := ParseCapabilities(e.Capabilities); err != nil {
		errs = append(errs, ValidationError{
			Field:   "engine.capabilities",
			Message: err.Error(),
		})
	}

	return errs
}

func validateHotkeys(h *HotkeysConfig) ValidationErrors {
	var errs ValidationErrors

	if h.Watch && h.ProfilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "hotkeys.profile_path",
			Message: "profile path is required when watch is enabled",
		})
	}

	if h.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "hotkeys.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}

	return errs
}

func validateKeymap(k *KeymapConfig) ValidationErrors {
	if k.Group < 0 || k.Group > 3 {
		return ValidationErrors{*RangeError("keymap.group", 0, 3)}
	}
	return nil
}

func validateStore(s *StoreConfig) ValidationErrors {
	if s.Path == "" {
		return ValidationErrors{*RequiredFieldError("store.path")}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
