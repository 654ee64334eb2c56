package onboard

import (
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"

	deverrors "github.com/gesturelink/rover/onboard/errors"
)

// CONFIG_VERSION is the schema constraint a config file must satisfy.
const CONFIG_VERSION = "~1"

const (
	FramingFixed   = "fixed"
	FramingNewline = "newline"
)

type NetworkConfig struct {
	Port uint16 `yaml:"port"`
	// Framing selects how codes are delimited on the wire: fixed 3-byte
	// frames (default) or newline terminated lines.
	Framing string `yaml:"framing"`
	// ReadTimeoutSec bounds a single frame read. 0 disables the deadline.
	ReadTimeoutSec int `yaml:"read_timeout"`
}

func (n NetworkConfig) ReadTimeout() time.Duration {
	return time.Duration(n.ReadTimeoutSec) * time.Second
}

// PinConfig assigns BCM pin numbers to outputs. Motor pins are an optional
// capability: either both are set or neither is.
type PinConfig struct {
	LED            int `yaml:"led"`
	MotorA         int `yaml:"motor_a,omitempty"`
	MotorB         int `yaml:"motor_b,omitempty"`
	DirectionLeft  int `yaml:"direction_left"`
	DirectionRight int `yaml:"direction_right"`
}

type SerialConfig struct {
	Baud uint `yaml:"baud"`
}

type RoverConfig struct {
	Version string        `yaml:"version"`
	Network NetworkConfig `yaml:"network"`
	Pins    PinConfig     `yaml:"pins"`
	Serial  SerialConfig  `yaml:"serial"`
}

// DefaultConfig mirrors the stock firmware wiring.
func DefaultConfig() RoverConfig {
	return RoverConfig{
		Version: "1.0.0",
		Network: NetworkConfig{
			Port:           1234,
			Framing:        FramingFixed,
			ReadTimeoutSec: 30,
		},
		Pins: PinConfig{
			LED:            2,
			MotorA:         16,
			MotorB:         17,
			DirectionLeft:  4,
			DirectionRight: 5,
		},
		Serial: SerialConfig{
			Baud: 115200,
		},
	}
}

// HasMotor reports whether the motor capability is configured.
func (c RoverConfig) HasMotor() bool {
	return c.Pins.MotorA != 0 && c.Pins.MotorB != 0
}

func LoadConfig(path string) (config RoverConfig, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("unable to read config file: %w", err)
	}

	if err = yaml.Unmarshal(raw, &config); err != nil {
		return config, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if config.Network.Framing == "" {
		config.Network.Framing = FramingFixed
	}

	err = config.Validate()
	return
}

func (c RoverConfig) Validate() (err error) {
	ver, err := semver.NewVersion(c.Version)
	if err != nil {
		return deverrors.ConfigError{Field: "version", Reason: fmt.Sprintf("is not a semver: %v", err)}
	}
	constraint, err := semver.NewConstraint(CONFIG_VERSION)
	if err != nil {
		return
	}
	if !constraint.Check(ver) {
		return deverrors.ConfigError{
			Field:  "version",
			Reason: fmt.Sprintf("%s does not satisfy %s", c.Version, CONFIG_VERSION),
		}
	}

	if c.Network.Port == 0 {
		return deverrors.ConfigError{Field: "network.port", Reason: "must be set"}
	}
	switch c.Network.Framing {
	case FramingFixed, FramingNewline:
	default:
		return deverrors.ConfigError{
			Field:  "network.framing",
			Reason: fmt.Sprintf("must be %q or %q", FramingFixed, FramingNewline),
		}
	}
	if c.Network.ReadTimeoutSec < 0 {
		return deverrors.ConfigError{Field: "network.read_timeout", Reason: "must not be negative"}
	}

	if (c.Pins.MotorA != 0) != (c.Pins.MotorB != 0) {
		return deverrors.ConfigError{
			Field:  "pins",
			Reason: "motor_a and motor_b must be set together or omitted together",
		}
	}

	required := map[string]int{
		"led":             c.Pins.LED,
		"direction_left":  c.Pins.DirectionLeft,
		"direction_right": c.Pins.DirectionRight,
	}
	for field, pin := range required {
		if pin <= 0 {
			return deverrors.ConfigError{Field: "pins." + field, Reason: "must be a positive pin number"}
		}
	}

	seen := make(map[int]string)
	assigned := map[string]int{
		"led":             c.Pins.LED,
		"motor_a":         c.Pins.MotorA,
		"motor_b":         c.Pins.MotorB,
		"direction_left":  c.Pins.DirectionLeft,
		"direction_right": c.Pins.DirectionRight,
	}
	for field, pin := range assigned {
		if pin == 0 {
			continue
		}
		if other, ok := seen[pin]; ok {
			return deverrors.ConfigError{
				Field:  "pins." + field,
				Reason: fmt.Sprintf("pin %d already assigned to %s", pin, other),
			}
		}
		seen[pin] = field
	}

	return nil
}
