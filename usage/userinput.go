package usage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nemo-facility/nemo-app-drive/records"
)

const (
	InvalidJSON    = "Invalid JSON"
	NoUserInput    = "No user_input found"
	NoValues       = "No values"
	userInputField = "user_input"
	groupSeparator = "; "
	valueSeparator = ": "
)

// object is a JSON object that remembers the order of its fields.
type object struct {
	keys   []string
	values map[string]any
}

// UserInput extracts the 'user_input' values from the pre-run or run data JSON
// of a usage event, searching nested objects when the top level has none.
func UserInput(data string) string {
	v, err := decode(data)
	if err != nil {
		return InvalidJSON
	}

	return extract(v)
}

func extract(v any) string {
	o, ok := v.(*object)
	if !ok {
		return NoUserInput
	}

	if input, ok := o.values[userInputField]; ok {
		fields, ok := input.(*object)
		if !ok {
			return records.Text(plain(input))
		}

		parts := []string{}
		for _, k := range fields.keys {
			switch value := fields.values[k].(type) {
			case nil:

			case *object:
				nested := []string{}
				for _, n := range value.keys {
					if value.values[n] != nil {
						nested = append(nested, n+valueSeparator+records.Text(plain(value.values[n])))
					}
				}

				if len(nested) > 0 {
					parts = append(parts, fmt.Sprintf("%v (%v)", k, strings.Join(nested, groupSeparator)))
				}

			default:
				parts = append(parts, k+valueSeparator+records.Text(plain(value)))
			}
		}

		if len(parts) == 0 {
			return NoValues
		}

		return strings.Join(parts, groupSeparator)
	}

	inputs := []string{}
	for _, k := range o.keys {
		if nested, ok := o.values[k].(*object); ok {
			if s := extract(nested); s != NoUserInput && s != NoValues {
				inputs = append(inputs, k+valueSeparator+s)
			}
		}
	}

	if len(inputs) == 0 {
		return NoUserInput
	}

	return strings.Join(inputs, groupSeparator)
}

func decode(data string) (any, error) {
	dec := json.NewDecoder(bytes.NewBufferString(data))
	dec.UseNumber()

	v, err := value(dec)
	if err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}

	return v, nil
}

func value(dec *json.Decoder) (any, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := token.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := &object{values: map[string]any{}}
			for dec.More() {
				k, err := dec.Token()
				if err != nil {
					return nil, err
				}

				key, ok := k.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", k)
				}

				v, err := value(dec)
				if err != nil {
					return nil, err
				}

				if _, ok := o.values[key]; !ok {
					o.keys = append(o.keys, key)
				}

				o.values[key] = v
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return o, nil

		case '[':
			list := []any{}
			for dec.More() {
				v, err := value(dec)
				if err != nil {
					return nil, err
				}

				list = append(list, v)
			}

			if _, err := dec.Token(); err != nil {
				return nil, err
			}

			return list, nil
		}

		return nil, fmt.Errorf("unexpected delimiter %v", t)

	default:
		return token, nil
	}
}

// plain converts decoded values back to the generic JSON types so that they can
// be rendered as text.
func plain(v any) any {
	switch value := v.(type) {
	case *object:
		m := map[string]any{}
		for k, v := range value.values {
			m[k] = plain(v)
		}
		return m

	case []any:
		list := make([]any, len(value))
		for i, v := range value {
			list[i] = plain(v)
		}
		return list

	default:
		return v
	}
}
