package atlk

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSemantics is returned when a variant cannot decide
	// strategic operators under the requested semantics.
	ErrUnsupportedSemantics = errors.New("unsupported semantics")
	// ErrOption reports an unknown option value.
	ErrOption = errors.New("invalid option")
)

func optionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrOption, fmt.Sprintf(format, args...))
}
