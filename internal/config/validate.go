package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	deviceValidatorOnce sync.Once
	deviceValidator     *validator.Validate
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := ValidateDevice(cfg.Device()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Audio.Input) == "" {
		warnings = append(warnings, Warning{Message: "audio.input is empty; using the default source"})
	}
	if strings.TrimSpace(cfg.Audio.Output) == "" {
		warnings = append(warnings, Warning{Message: "audio.output is empty; using the default sink"})
	}
	if cfg.Font.Size <= 0 {
		return nil, fmt.Errorf("font.size must be > 0")
	}
	switch cfg.Session.Backend {
	case SessionBackendJSON, SessionBackendSQLite:
	default:
		return nil, fmt.Errorf("session.backend must be one of: %s, %s", SessionBackendJSON, SessionBackendSQLite)
	}
	if cfg.Transport.TickMS <= 0 {
		return nil, fmt.Errorf("transport.tick_ms must be > 0")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		return nil, fmt.Errorf("log.max_backups must be >= 0")
	}

	return warnings, nil
}

// ValidateDevice checks the sample rate, channel count, and project directory.
func ValidateDevice(device DeviceConfig) error {
	err := newDeviceValidator().Struct(device)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate device config: %w", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "required":
			messages = append(messages, fmt.Sprintf("%s must not be empty", fe.Field()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid device config: %s", strings.Join(messages, "; "))
}

func newDeviceValidator() *validator.Validate {
	deviceValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		deviceValidator = v
	})
	return deviceValidator
}
