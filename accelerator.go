package paste

import (
	"errors"
	"sync"
)

// ErrFallbackToCPU indicates the accelerator cannot handle this batch.
// The caller should transparently fall back to host execution.
var ErrFallbackToCPU = errors.New("paste: falling back to host execution")

// Accelerator is an optional batch paste execution provider.
//
// When registered via RegisterAccelerator, [Op.Run] tries the accelerator
// first. If it returns ErrFallbackToCPU, execution transparently falls
// back to the host replay path. Any other error is fatal for the step and
// propagated to the caller without retry.
//
// Implementations are provided by backend packages (e.g., paste/gpu).
// Users opt in via blank import:
//
//	import _ "github.com/gogpu/paste/gpu" // enables GPU acceleration
type Accelerator interface {
	// Name returns the accelerator name (e.g., "cell-lookup").
	Name() string

	// Init initializes backend resources. Called once during registration.
	Init() error

	// Close releases backend resources.
	Close()

	// Paste fills every destination view from its regions. Regions are
	// already resolved and validated; dst[i] receives regions[i] applied
	// in order with last-write-wins semantics, zero background, and
	// saturating element conversion.
	Paste(dst, src []View, regions [][]Region) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers an accelerator for optional batch execution.
//
// Only one accelerator can be registered. Subsequent calls replace the
// previous one. The accelerator's Init() method is called during
// registration; if Init() fails, the accelerator is not registered and
// the error is returned.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("paste: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// GetAccelerator returns the currently registered accelerator, or nil.
func GetAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}
