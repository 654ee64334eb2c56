package errors

import "fmt"

type InvalidCodeError struct {
	Code string
}

func (err InvalidCodeError) Error() string {
	return fmt.Sprintf("unknown action code %q", err.Code)
}

type ConfigError struct {
	Field  string
	Reason string
}

func (err ConfigError) Error() string {
	if len(err.Field) == 0 {
		err.Field = "UNKOWN"
	}

	return fmt.Sprintf("invalid config; field %s %s", err.Field, err.Reason)
}
