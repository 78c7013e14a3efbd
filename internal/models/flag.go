package models

import (
	"encoding/json"
	"strings"
)

// ParseParamFlag interprets a "true"/"false" request parameter.
// "true" selects the inside set, "false" the outside set, and any other
// value selects everything (all is true).
func ParseParamFlag(param string) (inside, all bool) {
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "true":
		return true, false
	case "false":
		return false, false
	default:
		return false, true
	}
}

// Flag is a boolean that also accepts the strings "true" and "false" on the wire.
// Any other string decodes as false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = Flag(t)
	case string:
		inside, _ := ParseParamFlag(t)
		*f = Flag(inside)
	default:
		*f = false
	}
	return nil
}
