package validation

import "errors"

// Sentinel errors for the validator families. Callers match with errors.Is.
// Wrapped messages carry positions and key names, never raw values.
var (
	// ErrProgramRejected is returned when a program path or working
	// directory fails screening.
	ErrProgramRejected = errors.New("program rejected")

	// ErrArgumentRejected is returned when an argument fails screening.
	ErrArgumentRejected = errors.New("argument rejected")

	// ErrEnvRejected is returned when an environment variable fails
	// screening.
	ErrEnvRejected = errors.New("environment rejected")

	// ErrPathRejected is returned by SanitizePath for unsafe paths.
	ErrPathRejected = errors.New("path rejected")
)
