//go:build !linux

package gpio

import "errors"

// SysfsChip is only available on linux. Other platforms get a stub so the
// binary still builds for development against the simulator.
type SysfsChip struct{}

func NewChip() (*SysfsChip, error) {
	return nil, errors.New("sysfs gpio requires linux; run with -sim")
}

func (c *SysfsChip) OpenPin(number int) (Pin, error) {
	return nil, errors.New("sysfs gpio requires linux")
}

func (c *SysfsChip) Close() error {
	return nil
}
