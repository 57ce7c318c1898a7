//go:build nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/paste"
)

type device struct {
	adapterName string
}

func newDevice() (*device, error) {
	return nil, fmt.Errorf("built without GPU support")
}

func (d *device) close() {}

func (d *device) dispatch(paste.View, []paste.View, sampleDesc) error {
	return fmt.Errorf("built without GPU support")
}
