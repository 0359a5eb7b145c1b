package variant

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ImportValue validates data against v's type and stores it. In non-strict
// mode it additionally accepts several lenient encodings described in
// SPEC_FULL.md §4.1 (string-encoded numbers including inf/-inf/nan,
// 0/1/token bools, scalar-to-length-1-array wrapping, enum member names,
// inferred-type struct keys, and growable tuples). Strict mode requires an
// exact structural match including enum membership.
func (v *Variant) ImportValue(data []byte, strict bool) error {
	switch v.kind {
	case Null:
		if string(data) != "null" {
			return fmt.Errorf("variant: expected null")
		}
		return nil

	case Bool:
		b, err := parseBool(data, strict)
		if err != nil {
			return err
		}
		v.boolVal = b
		return nil

	case Double:
		f, err := parseDouble(data, strict)
		if err != nil {
			return err
		}
		if !inRange(f, v.numMin, v.numMax) {
			return fmt.Errorf("variant: %v out of range [%v,%v]", f, v.numMin, v.numMax)
		}
		v.dblVal = f
		return nil

	case Int, Scaled:
		i, err := parseInt(data, strict)
		if err != nil {
			return err
		}
		if !intInRange(i, v) {
			return fmt.Errorf("variant: %d out of range", i)
		}
		v.intVal = i
		return nil

	case Enum:
		val, err := parseEnum(data, v.enumMembers, strict)
		if err != nil {
			return err
		}
		v.enumVal = val
		return nil

	case String:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("variant: expected string: %w", err)
		}
		b := []byte(s)
		if uint(len(b)) < v.minLen || (v.hasMaxLen && uint(len(b)) > v.maxLen) {
			return fmt.Errorf("variant: string length %d out of bounds", len(b))
		}
		if v.isUTF8 && !utf8.Valid(b) {
			return fmt.Errorf("variant: invalid UTF-8")
		}
		if v.hasMaxChars && uint(utf8.RuneCount(b)) > v.maxChars {
			return fmt.Errorf("variant: character count exceeds maxchars %d", v.maxChars)
		}
		v.bytesVal = b
		return nil

	case Blob:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("variant: expected base64 string: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("variant: invalid base64: %w", err)
		}
		if uint(len(b)) < v.minLen || (v.hasMaxLen && uint(len(b)) > v.maxLen) {
			return fmt.Errorf("variant: blob length %d out of bounds", len(b))
		}
		v.bytesVal = b
		return nil

	case Json:
		if !json.Valid(data) {
			return fmt.Errorf("variant: invalid JSON")
		}
		v.bytesVal = append([]byte(nil), data...)
		return nil

	case ArrayBool, ArrayDouble, ArrayInt, ArrayScaled, ArrayEnum, Array:
		return v.importArray(data, strict)

	case Struct:
		return v.importStruct(data, strict)

	case Tuple:
		return v.importTuple(data, strict)

	case Command:
		return fmt.Errorf("variant: Command has no importable value")

	default:
		return fmt.Errorf("variant: ImportValue on kind %s", v.kind)
	}
}

func parseBool(data []byte, strict bool) (bool, error) {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return b, nil
	}
	if strict {
		return false, fmt.Errorf("variant: expected bool")
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		switch n.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch strings.ToLower(s) {
		case "t", "y", "on", "true", "yes":
			return true, nil
		case "f", "n", "off", "false", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("variant: cannot parse %s as bool", data)
}

func parseDouble(data []byte, strict bool) (float64, error) {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		return f, nil
	}
	if !strict {
		var i int64
		if err := json.Unmarshal(data, &i); err == nil {
			return float64(i), nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "inf", "+inf", "infinity":
				return math.Inf(1), nil
			case "-inf", "-infinity":
				return math.Inf(-1), nil
			case "nan":
				return math.NaN(), nil
			}
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				return parsed, nil
			}
		}
	}
	return 0, fmt.Errorf("variant: cannot parse %s as double", data)
}

func parseInt(data []byte, strict bool) (int64, error) {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		return i, nil
	}
	if !strict {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			if parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return parsed, nil
			}
		}
	}
	return 0, fmt.Errorf("variant: cannot parse %s as int", data)
}

func parseEnum(data []byte, members []EnumMember, strict bool) (int64, error) {
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		if !isDeclaredEnumValue(members, i) {
			return 0, fmt.Errorf("variant: %d is not a declared enum member", i)
		}
		return i, nil
	}
	if !strict {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			for _, m := range members {
				if m.Name == s {
					return m.Value, nil
				}
			}
			return 0, fmt.Errorf("variant: %q is not a declared enum member name", s)
		}
	}
	return 0, fmt.Errorf("variant: cannot parse %s as enum", data)
}

func (v *Variant) importArray(data []byte, strict bool) error {
	var rawElems []json.RawMessage
	if err := json.Unmarshal(data, &rawElems); err != nil {
		if strict {
			return fmt.Errorf("variant: expected array: %w", err)
		}
		// non-strict: wrap a bare scalar into a length-1 array.
		rawElems = []json.RawMessage{json.RawMessage(data)}
	}
	if uint(len(rawElems)) < v.arrMinLen || (v.hasArrMax && uint(len(rawElems)) > v.arrMaxLen) {
		return fmt.Errorf("variant: array length %d out of bounds", len(rawElems))
	}
	elems := make([]*Variant, len(rawElems))
	for i, raw := range rawElems {
		e := v.elemProto.Duplicate()
		if err := e.ImportValue(raw, strict); err != nil {
			return fmt.Errorf("variant: array element %d: %w", i, err)
		}
		elems[i] = e
	}
	v.elements = elems
	return nil
}

func (v *Variant) importStruct(data []byte, strict bool) error {
	obj, err := decodeOrderedObject(data)
	if err != nil {
		return fmt.Errorf("variant: expected object: %w", err)
	}
	seen := map[string]bool{}
	for _, key := range obj.keys {
		lk := strings.ToLower(key)
		seen[lk] = true
		if idx, ok := v.structIdx[lk]; ok {
			if err := v.structVals[idx].ImportValue(obj.values[key], strict); err != nil {
				return fmt.Errorf("variant: struct field %q: %w", key, err)
			}
			continue
		}
		if strict {
			return fmt.Errorf("variant: unknown struct field %q", key)
		}
		inferred, err := inferFromJSON(obj.values[key])
		if err != nil {
			return fmt.Errorf("variant: struct field %q: %w", key, err)
		}
		v.structIdx[lk] = len(v.structKeys)
		v.structKeys = append(v.structKeys, key)
		v.structVals = append(v.structVals, inferred)
	}
	for _, key := range v.structKeys {
		if !seen[strings.ToLower(key)] {
			return fmt.Errorf("variant: missing struct field %q", key)
		}
	}
	return nil
}

func (v *Variant) importTuple(data []byte, strict bool) error {
	var rawElems []json.RawMessage
	if err := json.Unmarshal(data, &rawElems); err != nil {
		return fmt.Errorf("variant: expected array: %w", err)
	}
	if strict && len(rawElems) != len(v.tupleSlots) {
		return fmt.Errorf("variant: tuple arity %d != %d", len(rawElems), len(v.tupleSlots))
	}
	if !strict {
		for len(v.tupleSlots) < len(rawElems) {
			v.tupleSlots = append(v.tupleSlots, v.tupleSlots[len(v.tupleSlots)-1].Duplicate())
		}
		if len(rawElems) < len(v.tupleSlots) {
			return fmt.Errorf("variant: tuple arity %d < %d", len(rawElems), len(v.tupleSlots))
		}
	}
	for i, raw := range rawElems {
		if err := v.tupleSlots[i].ImportValue(raw, strict); err != nil {
			return fmt.Errorf("variant: tuple slot %d: %w", i, err)
		}
	}
	return nil
}

// inferFromJSON builds a best-guess Variant type+value for an unrecognised
// struct key encountered in non-strict import.
func inferFromJSON(raw json.RawMessage) (*Variant, error) {
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch val := probe.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(val), nil
	case float64:
		d, _ := NewDouble(math.NaN(), math.NaN())
		_ = d.ImportValue(raw, false)
		return d, nil
	case string:
		s, _ := NewString(0, 0, false, true, 0, false)
		_ = s.ImportValue(raw, false)
		return s, nil
	case []any:
		proto, _ := NewDouble(math.NaN(), math.NaN())
		arr, err := NewArray(proto, 0, 0, false)
		if err != nil {
			return nil, err
		}
		if err := arr.ImportValue(raw, false); err != nil {
			return nil, err
		}
		return arr, nil
	case map[string]any:
		st := NewStruct()
		if err := st.ImportValue(raw, false); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("cannot infer type for %T", val)
	}
}

// ExportValue emits the canonical SECoP wire value for v.
func (v *Variant) ExportValue() json.RawMessage {
	switch v.kind {
	case Null:
		return []byte("null")
	case Bool:
		b, _ := json.Marshal(v.boolVal)
		return b
	case Double:
		return exportFloat(v.dblVal)
	case Int, Scaled:
		b, _ := json.Marshal(v.intVal)
		return b
	case Enum:
		b, _ := json.Marshal(v.enumVal)
		return b
	case String:
		b, _ := json.Marshal(string(v.bytesVal))
		return b
	case Blob:
		b, _ := json.Marshal(base64.StdEncoding.EncodeToString(v.bytesVal))
		return b
	case Json:
		if len(v.bytesVal) == 0 {
			return []byte("null")
		}
		return append([]byte(nil), v.bytesVal...)
	case ArrayBool, ArrayDouble, ArrayInt, ArrayScaled, ArrayEnum, Array:
		parts := make([]json.RawMessage, len(v.elements))
		for i, e := range v.elements {
			parts[i] = e.ExportValue()
		}
		b, _ := json.Marshal(parts)
		return b
	case Struct:
		o := orderedRawObject{}
		for i, k := range v.structKeys {
			o = append(o, kv{k, v.structVals[i].ExportValue()})
		}
		return o.marshal()
	case Tuple:
		parts := make([]json.RawMessage, len(v.tupleSlots))
		for i, s := range v.tupleSlots {
			parts[i] = s.ExportValue()
		}
		b, _ := json.Marshal(parts)
		return b
	case Command:
		if v.cmdRes == nil {
			return []byte("null")
		}
		return v.cmdRes.ExportValue()
	default:
		return []byte("null")
	}
}

func exportFloat(f float64) json.RawMessage {
	if math.IsNaN(f) {
		return []byte(`"nan"`)
	}
	if math.IsInf(f, 1) {
		return []byte(`"inf"`)
	}
	if math.IsInf(f, -1) {
		return []byte(`"-inf"`)
	}
	b, _ := json.Marshal(f)
	return b
}
