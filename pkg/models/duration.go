package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var ErrInvalidDuration = fmt.Errorf("invalid duration")

// Duration is a wrapper around time.Duration for JSON unmarshaling.
// It accepts either a number of nanoseconds or a string such as "75ms".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*d = Duration(tmp)
	default:
		return ErrInvalidDuration
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
