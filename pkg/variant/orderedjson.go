package variant

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// orderedObject decodes a JSON object preserving key declaration order,
// which encoding/json's map decoding does not guarantee. It is used for
// Enum "members" and Struct "members" descriptors, and for the top-level
// descriptor object so unrecognised keys can be captured in order-agnostic
// "additional" storage without disturbing the ones that do carry order.
type orderedObject struct {
	keys   []string
	values map[string]json.RawMessage
}

func decodeOrderedObject(raw json.RawMessage) (*orderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("variant: expected JSON object")
	}
	out := &orderedObject{values: map[string]json.RawMessage{}}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("variant: expected string key")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out.keys = append(out.keys, key)
		out.values[key] = raw
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return out, nil
}

func (o *orderedObject) get(key string) (json.RawMessage, bool) {
	v, ok := o.values[key]
	return v, ok
}
