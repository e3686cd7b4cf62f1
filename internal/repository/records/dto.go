package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeFields renders object values as a flat hash. Every value is stored as JSON so
// lists, numbers and booleans survive the round-trip.
func encodeFields(obj map[string]any) (map[string]string, error) {
	m := make(map[string]string, len(obj))
	for k, v := range obj {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		m[k] = string(data)
	}
	return m, nil
}

// decodeFields parses a hash written by encodeFields. Numbers stay json.Number and
// string lists come back as []string. Values that are not JSON are kept verbatim.
func decodeFields(m map[string]string) map[string]any {
	obj := make(map[string]any, len(m))
	for k, raw := range m {
		dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			obj[k] = raw
			continue
		}
		obj[k] = normalize(v)
	}
	return obj
}

func normalize(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	strs := make([]string, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			return list
		}
		strs = append(strs, s)
	}
	return strs
}
