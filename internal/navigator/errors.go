package navigator

import (
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/pkg/errors"
)

var (
	// ErrConfig marks invalid geometry, material or parameters. It is always
	// reported before any particle is tracked.
	ErrConfig = errors.New("configuration error")
	// ErrResource marks a failed device allocation.
	ErrResource = compute.ErrResource
)

// ConfigError wraps ErrConfig with the component and operation that rejected the input.
func ConfigError(component, operation, format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfig, component+"::"+operation+": "+format, args...)
}
