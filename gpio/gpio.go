package gpio

// Pin is a single binary output line.
type Pin interface {
	Set(high bool) error
	Value() bool
	Close() error
}

// Chip claims output pins by number. A pin may only be claimed once per chip.
type Chip interface {
	OpenPin(number int) (Pin, error)
	Close() error
}
