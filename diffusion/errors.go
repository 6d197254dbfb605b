// errors.go - Fehlerarten der Pipeline.
package diffusion

// ConfigError reports an invalid generation configuration. It is raised
// before any capability call happens, so the caller can fix the
// configuration and retry without side effects.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid generation config: " + e.Reason
}

func configErrorf(reason string) *ConfigError {
	return &ConfigError{Reason: reason}
}
