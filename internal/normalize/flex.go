package normalize

import (
	"bytes"

	"github.com/goccy/go-json"
)

// FlexString is a provider field that may arrive as a JSON string, number,
// bool or null. Numbers and bools keep their literal text; null is "".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	case data[0] == '{' || data[0] == '[':
		// Objects and arrays carry nothing usable for a scalar field.
		*f = ""
		return nil
	default:
		*f = FlexString(data)
		return nil
	}
}

func (f FlexString) String() string { return string(f) }

// IntList is a category id list. Panels send [1,2], ["1","2"], a single
// scalar, or null; entries that are not integers are dropped.
type IntList []int

func (l *IntList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var raw []FlexString
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var one FlexString
		if err := one.UnmarshalJSON(data); err != nil {
			return err
		}
		raw = []FlexString{one}
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if n, ok := ToInt(string(v)); ok {
			out = append(out, n)
		}
	}
	*l = out
	return nil
}

// StringList is a list of strings that tolerates a bare string or null.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var raw []FlexString
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		var one FlexString
		if err := one.UnmarshalJSON(data); err != nil {
			return err
		}
		raw = []FlexString{one}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := NonBlankString(string(v)); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}
