package gpio

import (
	"fmt"
	"sync"
)

// MemPin is an in-memory pin used by the simulator and tests.
type MemPin struct {
	Number int

	mu   sync.Mutex
	high bool
}

func (p *MemPin) Set(high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.high = high
	return nil
}

func (p *MemPin) Value() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

func (p *MemPin) Close() error {
	return nil
}

// MemChip hands out MemPins and remembers them so tests can inspect levels.
type MemChip struct {
	mu   sync.Mutex
	Pins map[int]*MemPin
}

func NewMemChip() *MemChip {
	return &MemChip{
		Pins: make(map[int]*MemPin),
	}
}

func (c *MemChip) OpenPin(number int) (Pin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.Pins[number]; ok {
		return nil, fmt.Errorf("pin %d already claimed", number)
	}

	p := &MemPin{Number: number}
	c.Pins[number] = p
	return p, nil
}

func (c *MemChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Pins = make(map[int]*MemPin)
	return nil
}
