package config

import (
	"fmt"
	"slices"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Observability exporters
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

func Validate(cfg *Config) error {
	if err := validateApp(&cfg.App); err != nil {
		return fmt.Errorf("app config: %w", err)
	}
	if err := validateLog(&cfg.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if err := validateRetry(&cfg.Retry); err != nil {
		return fmt.Errorf("retry config: %w", err)
	}
	if cfg.Redirect.MaxHops < 0 {
		return fmt.Errorf("redirect config: %w",
			NewInvalidFieldError("redirect.max_hops", fmt.Sprintf("must not be negative, got %d", cfg.Redirect.MaxHops), nil))
	}
	if err := validateSession(&cfg.Session); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if cfg.DHCP.PollInterval <= 0 {
		return fmt.Errorf("dhcp config: %w", NewInvalidFieldError("dhcp.poll_interval", "must be positive", nil))
	}
	if err := validateObservability(&cfg.Observability); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}
	return nil
}

func validateApp(cfg *AppConfig) error {
	if cfg.Name == "" {
		return NewMissingFieldError("app.name")
	}
	validEnvs := []string{EnvDevelopment, EnvStaging, EnvProduction}
	if !slices.Contains(validEnvs, cfg.Env) {
		return NewInvalidFieldError("app.env", fmt.Sprintf("unknown environment %q", cfg.Env), validEnvs)
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error", "disabled"}
	if !slices.Contains(validLevels, cfg.Level) {
		return NewInvalidFieldError("log.level", fmt.Sprintf("unknown level %q", cfg.Level), validLevels)
	}
	return nil
}

// validateRetry requires 1 <= min_delay <= max_delay, a positive unit and at
// least one attempt per interface.
func validateRetry(cfg *RetryConfig) error {
	if cfg.MinDelay < 1 {
		return NewInvalidFieldError("retry.min_delay", fmt.Sprintf("must be at least 1, got %d", cfg.MinDelay), nil)
	}
	if cfg.MaxDelay < cfg.MinDelay {
		return NewInvalidFieldError("retry.max_delay",
			fmt.Sprintf("must not be below retry.min_delay (%d), got %d", cfg.MinDelay, cfg.MaxDelay), nil)
	}
	if cfg.Unit <= 0 {
		return NewInvalidFieldError("retry.unit", "must be positive", nil)
	}
	if cfg.MaxAttemptsPerNic < 1 {
		return NewInvalidFieldError("retry.max_attempts_per_nic",
			fmt.Sprintf("must be at least 1, got %d", cfg.MaxAttemptsPerNic), nil)
	}
	return nil
}

func validateSession(cfg *SessionConfig) error {
	if cfg.Timeout <= 0 {
		return NewInvalidFieldError("session.timeout", "must be positive", nil)
	}
	if cfg.MaxBodyBytes <= 0 {
		return NewInvalidFieldError("session.max_body_bytes", "must be positive", nil)
	}
	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.ServiceName == "" {
		return NewMissingFieldError("observability.service_name")
	}
	exporters := []string{ExporterStdout, ExporterOTLP}
	if !slices.Contains(exporters, cfg.Exporter) {
		return NewInvalidFieldError("observability.exporter", fmt.Sprintf("unknown exporter %q", cfg.Exporter), exporters)
	}
	if cfg.Exporter == ExporterOTLP && cfg.Endpoint == "" {
		return NewMissingFieldError("observability.endpoint")
	}
	return nil
}
