// Package errs defines the error taxonomy shared across alertmagnet's
// packages. Kinds are distinguished by sentinel wrapping so callers can
// use errors.Is instead of type assertions.
package errs

import "fmt"

// Sentinel kinds for the startup-time and programmer-error failure
// classes that abort the process.
var (
	// ErrConfig marks a fatal configuration problem; the process must
	// abort before any work is scheduled.
	ErrConfig = fmt.Errorf("alertmagnet: config error")

	// ErrRequiredConfigKey marks a required config key that was absent
	// or empty.
	ErrRequiredConfigKey = fmt.Errorf("alertmagnet: required config key not found")

	// ErrInvalidConfigValue marks a config value that could not be parsed
	// or is not an accepted value (e.g. an unrecognized log level).
	ErrInvalidConfigValue = fmt.Errorf("alertmagnet: invalid config value")

	// ErrInvalidQueryQueue marks a programmer error in queue handling,
	// such as submitting a task after a limiter has started draining.
	ErrInvalidQueryQueue = fmt.Errorf("alertmagnet: invalid query queue")
)

// Config wraps ErrConfig with a message, for malformed retention
// expressions and other startup-time validation failures.
func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// RequiredConfigKey wraps ErrRequiredConfigKey naming the missing key.
func RequiredConfigKey(key string) error {
	return fmt.Errorf("%w: %q", ErrRequiredConfigKey, key)
}

// InvalidConfigValue wraps ErrInvalidConfigValue naming the key and the
// value that failed to parse.
func InvalidConfigValue(key, value string) error {
	return fmt.Errorf("%w: %q=%q", ErrInvalidConfigValue, key, value)
}

// InvalidQueryQueue wraps ErrInvalidQueryQueue with a detail message.
func InvalidQueryQueue(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidQueryQueue, detail)
}
