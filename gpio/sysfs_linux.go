//go:build linux

package gpio

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

const sysfsRoot = "/sys/class/gpio"

// SysfsChip drives pins through the kernel sysfs GPIO interface.
type SysfsChip struct {
	pins map[int]*sysfsPin
}

func NewChip() (chip *SysfsChip, err error) {
	chip = &SysfsChip{
		pins: make(map[int]*sysfsPin),
	}
	return
}

func (c *SysfsChip) OpenPin(number int) (pin Pin, err error) {
	if _, ok := c.pins[number]; ok {
		return nil, fmt.Errorf("pin %d already claimed", number)
	}

	p := &sysfsPin{number: number, fd: -1}
	if err = p.export(); err != nil {
		return
	}
	if err = p.direction("out"); err != nil {
		return
	}

	p.fd, err = unix.Open(fmt.Sprintf("%s/gpio%d/value", sysfsRoot, number), unix.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open value for pin %d: %w", number, err)
	}

	// pins always start low
	if err = p.Set(false); err != nil {
		return
	}

	c.pins[number] = p
	return p, nil
}

func (c *SysfsChip) Close() (err error) {
	for number, p := range c.pins {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(c.pins, number)
	}
	return
}

type sysfsPin struct {
	number int
	fd     int
	high   bool
}

func (p *sysfsPin) export() error {
	fd, err := unix.Open(sysfsRoot+"/export", unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer unix.Close(fd)

	_, err = unix.Write(fd, []byte(strconv.Itoa(p.number)))
	if err == unix.EBUSY {
		// already exported from a previous run, usable as-is
		return nil
	}
	if err != nil {
		return fmt.Errorf("export pin %d: %w", p.number, err)
	}
	return nil
}

func (p *sysfsPin) direction(dir string) error {
	fd, err := unix.Open(fmt.Sprintf("%s/gpio%d/direction", sysfsRoot, p.number), unix.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open direction for pin %d: %w", p.number, err)
	}
	defer unix.Close(fd)

	if _, err = unix.Write(fd, []byte(dir)); err != nil {
		return fmt.Errorf("set direction for pin %d: %w", p.number, err)
	}
	return nil
}

func (p *sysfsPin) Set(high bool) (err error) {
	val := []byte("0")
	if high {
		val = []byte("1")
	}
	if _, err = unix.Write(p.fd, val); err != nil {
		return fmt.Errorf("write pin %d: %w", p.number, err)
	}
	p.high = high
	return
}

func (p *sysfsPin) Value() bool {
	return p.high
}

func (p *sysfsPin) Close() error {
	if p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}
