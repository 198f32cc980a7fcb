package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The admin UI persists numeric goal fields inconsistently: sometimes as
// JSON numbers, sometimes as strings ("250", "50.0", ""). FlexFloat and
// FlexInt accept either form and treat anything unparseable as zero, so a
// sloppy document can never fail the pricing path.

// FlexFloat is a float64 that unmarshals from a JSON number or string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns the plain float64 value.
func (f FlexFloat) Float() float64 { return float64(f) }

// FlexInt is an int that unmarshals from a JSON number or string.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		*i = 0
		return nil
	}
	*i = FlexInt(f)
	return nil
}

// Int returns the plain int value.
func (i FlexInt) Int() int { return int(i) }
