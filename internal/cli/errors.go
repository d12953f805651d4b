package cli

import "errors"

// ErrUsage matches every error caused by how the CLI was invoked: bad flags,
// bad config files, unusable input or output paths.
var ErrUsage = errors.New("defacto: usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string { return e.msg }

func (e usageError) Is(target error) bool { return target == ErrUsage }
