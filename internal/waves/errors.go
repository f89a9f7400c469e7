package waves

import "fmt"

// UnknownWaveError reports a lookup for a wave number that is not
// registered. Available carries the numbers that are, in ascending order.
type UnknownWaveError struct {
	Number    int
	Available []int
}

// Error implements the error interface.
func (e *UnknownWaveError) Error() string {
	return fmt.Sprintf("wave %d is not registered (available waves: %s)",
		e.Number, formatNumbers(e.Available))
}

// ConfigError reports a wave-pair token that could not be resolved, either
// because its shape is not recognized or because the waves it names are not
// registered. Token preserves the caller's original spelling.
type ConfigError struct {
	Token     string
	Reason    string
	Available []int

	cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid wave configuration %q: %s (supported formats: \"w<N>_to_w<M>\" or \"all_waves\"; registered waves: %s)",
		e.Token, e.Reason, formatNumbers(e.Available))
}

// Unwrap exposes the underlying registry lookup failure when there is one,
// so errors.As can still find the *UnknownWaveError underneath.
func (e *ConfigError) Unwrap() error {
	return e.cause
}

func newConfigError(token, reason string, available []int, cause error) *ConfigError {
	return &ConfigError{Token: token, Reason: reason, Available: available, cause: cause}
}
