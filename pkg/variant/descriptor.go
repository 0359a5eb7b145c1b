package variant

import (
	"encoding/json"
	"fmt"
	"math"
)

// CreateFromDescriptor parses a SECoP type descriptor ({"type": "...", …})
// into a Variant. Unknown keys are preserved in the resulting Variant's
// Additional map. It fails on malformed structure, an unknown type name, or
// a constraint violation (e.g. scale <= 0, min > max).
func CreateFromDescriptor(data []byte) (*Variant, error) {
	obj, err := decodeOrderedObject(data)
	if err != nil {
		return nil, fmt.Errorf("variant: invalid descriptor: %w", err)
	}
	typRaw, ok := obj.get("type")
	if !ok {
		return nil, fmt.Errorf("variant: descriptor missing \"type\"")
	}
	var typ string
	if err := json.Unmarshal(typRaw, &typ); err != nil {
		return nil, fmt.Errorf("variant: \"type\" must be a string: %w", err)
	}

	known := map[string]bool{"type": true}
	mark := func(keys ...string) {
		for _, k := range keys {
			known[k] = true
		}
	}

	var v *Variant
	switch typ {
	case "bool":
		v = NewBool(false)

	case "int":
		hasMin, min, err := optInt(obj, "min")
		if err != nil {
			return nil, err
		}
		hasMax, max, err := optInt(obj, "max")
		if err != nil {
			return nil, err
		}
		mark("min", "max")
		v, err = NewInt(hasMin, min, hasMax, max)
		if err != nil {
			return nil, err
		}

	case "double":
		min, err := optDoubleOrNaN(obj, "min")
		if err != nil {
			return nil, err
		}
		max, err := optDoubleOrNaN(obj, "max")
		if err != nil {
			return nil, err
		}
		mark("min", "max")
		v, err = NewDouble(min, max)
		if err != nil {
			return nil, err
		}

	case "scaled":
		scaleRaw, ok := obj.get("scale")
		if !ok {
			return nil, fmt.Errorf("variant: scaled descriptor missing \"scale\"")
		}
		var scale float64
		if err := json.Unmarshal(scaleRaw, &scale); err != nil {
			return nil, fmt.Errorf("variant: invalid scale: %w", err)
		}
		hasMin, min, err := optInt(obj, "min")
		if err != nil {
			return nil, err
		}
		hasMax, max, err := optInt(obj, "max")
		if err != nil {
			return nil, err
		}
		mark("scale", "min", "max")
		v, err = NewScaled(scale, hasMin, min, hasMax, max)
		if err != nil {
			return nil, err
		}

	case "enum":
		membersRaw, ok := obj.get("members")
		if !ok {
			return nil, fmt.Errorf("variant: enum descriptor missing \"members\"")
		}
		membersObj, err := decodeOrderedObject(membersRaw)
		if err != nil {
			return nil, fmt.Errorf("variant: invalid enum members: %w", err)
		}
		members := make([]EnumMember, 0, len(membersObj.keys))
		for _, name := range membersObj.keys {
			var val int64
			if err := json.Unmarshal(membersObj.values[name], &val); err != nil {
				return nil, fmt.Errorf("variant: enum member %q: %w", name, err)
			}
			members = append(members, EnumMember{Name: name, Value: val})
		}
		mark("members")
		v, err = NewEnum(members)
		if err != nil {
			return nil, err
		}

	case "string":
		minLen, err := optUint(obj, "minchars")
		if err != nil {
			return nil, err
		}
		hasMax, maxLen, err := optUintPresent(obj, "maxchars")
		if err != nil {
			return nil, err
		}
		isUTF8 := true
		if raw, ok := obj.get("isUTF8"); ok {
			if err := json.Unmarshal(raw, &isUTF8); err != nil {
				return nil, fmt.Errorf("variant: invalid isUTF8: %w", err)
			}
		}
		mark("minchars", "maxchars", "isUTF8")
		v, err = NewString(minLen, maxLen, hasMax, isUTF8, maxLen, hasMax)
		if err != nil {
			return nil, err
		}

	case "blob":
		minLen, err := optUint(obj, "minbytes")
		if err != nil {
			return nil, err
		}
		hasMax, maxLen, err := optUintPresent(obj, "maxbytes")
		if err != nil {
			return nil, err
		}
		mark("minbytes", "maxbytes")
		v, err = NewBlob(minLen, maxLen, hasMax)
		if err != nil {
			return nil, err
		}

	case "json":
		v = NewJSON()

	case "array":
		membersRaw, ok := obj.get("members")
		if !ok {
			return nil, fmt.Errorf("variant: array descriptor missing \"members\"")
		}
		elem, err := CreateFromDescriptor(membersRaw)
		if err != nil {
			return nil, fmt.Errorf("variant: array element type: %w", err)
		}
		minLen, err := optUint(obj, "minlen")
		if err != nil {
			return nil, err
		}
		hasMax, maxLen, err := optUintPresent(obj, "maxlen")
		if err != nil {
			return nil, err
		}
		mark("members", "minlen", "maxlen")
		v, err = NewArray(elem, minLen, maxLen, hasMax)
		if err != nil {
			return nil, err
		}

	case "tuple":
		membersRaw, ok := obj.get("members")
		if !ok {
			return nil, fmt.Errorf("variant: tuple descriptor missing \"members\"")
		}
		var rawSlots []json.RawMessage
		if err := json.Unmarshal(membersRaw, &rawSlots); err != nil {
			return nil, fmt.Errorf("variant: tuple members must be an array: %w", err)
		}
		slots := make([]*Variant, 0, len(rawSlots))
		for i, raw := range rawSlots {
			slot, err := CreateFromDescriptor(raw)
			if err != nil {
				return nil, fmt.Errorf("variant: tuple slot %d: %w", i, err)
			}
			slots = append(slots, slot)
		}
		mark("members")
		var err error
		v, err = NewTuple(slots)
		if err != nil {
			return nil, err
		}

	case "struct":
		membersRaw, ok := obj.get("members")
		if !ok {
			return nil, fmt.Errorf("variant: struct descriptor missing \"members\"")
		}
		membersObj, err := decodeOrderedObject(membersRaw)
		if err != nil {
			return nil, fmt.Errorf("variant: invalid struct members: %w", err)
		}
		v = NewStruct()
		for _, key := range membersObj.keys {
			field, err := CreateFromDescriptor(membersObj.values[key])
			if err != nil {
				return nil, fmt.Errorf("variant: struct field %q: %w", key, err)
			}
			if err := v.SetField(key, field); err != nil {
				return nil, err
			}
		}
		mark("members")

	case "command":
		var arg, res *Variant
		if raw, ok := obj.get("argument"); ok && string(raw) != "null" {
			a, err := CreateFromDescriptor(raw)
			if err != nil {
				return nil, fmt.Errorf("variant: command argument: %w", err)
			}
			arg = a
		}
		if raw, ok := obj.get("result"); ok && string(raw) != "null" {
			r, err := CreateFromDescriptor(raw)
			if err != nil {
				return nil, fmt.Errorf("variant: command result: %w", err)
			}
			res = r
		}
		mark("argument", "result")
		v = NewCommand(arg, res)

	default:
		return nil, fmt.Errorf("variant: unknown type %q", typ)
	}

	for _, key := range obj.keys {
		if known[key] {
			continue
		}
		v.SetAdditional(key, obj.values[key])
	}
	return v, nil
}

func optInt(obj *orderedObject, key string) (bool, int64, error) {
	raw, ok := obj.get(key)
	if !ok {
		return false, 0, nil
	}
	var val int64
	if err := json.Unmarshal(raw, &val); err != nil {
		return false, 0, fmt.Errorf("variant: invalid %s: %w", key, err)
	}
	return true, val, nil
}

func optUint(obj *orderedObject, key string) (uint, error) {
	raw, ok := obj.get(key)
	if !ok {
		return 0, nil
	}
	var val uint
	if err := json.Unmarshal(raw, &val); err != nil {
		return 0, fmt.Errorf("variant: invalid %s: %w", key, err)
	}
	return val, nil
}

func optUintPresent(obj *orderedObject, key string) (bool, uint, error) {
	raw, ok := obj.get(key)
	if !ok {
		return false, 0, nil
	}
	var val uint
	if err := json.Unmarshal(raw, &val); err != nil {
		return false, 0, fmt.Errorf("variant: invalid %s: %w", key, err)
	}
	return true, val, nil
}

func optDoubleOrNaN(obj *orderedObject, key string) (float64, error) {
	raw, ok := obj.get(key)
	if !ok {
		return math.NaN(), nil
	}
	var val float64
	if err := json.Unmarshal(raw, &val); err != nil {
		return 0, fmt.Errorf("variant: invalid %s: %w", key, err)
	}
	return val, nil
}

// ExportType emits the canonical SECoP type descriptor for v, merging in
// its Additional out-of-band metadata.
func (v *Variant) ExportType() json.RawMessage {
	m := map[string]json.RawMessage{}
	switch v.kind {
	case Bool:
		m["type"] = jstr("bool")
	case Double:
		m["type"] = jstr("double")
		if !math.IsNaN(v.numMin) {
			m["min"] = jnum(v.numMin)
		}
		if !math.IsNaN(v.numMax) {
			m["max"] = jnum(v.numMax)
		}
	case Int:
		m["type"] = jstr("int")
		if v.intHasMin {
			m["min"] = jnum(float64(v.intMin))
		}
		if v.intHasMax {
			m["max"] = jnum(float64(v.intMax))
		}
	case Scaled:
		m["type"] = jstr("scaled")
		m["scale"] = jnum(v.scale)
		if v.intHasMin {
			m["min"] = jnum(float64(v.intMin))
		}
		if v.intHasMax {
			m["max"] = jnum(float64(v.intMax))
		}
	case Enum:
		m["type"] = jstr("enum")
		members := map[string]int64{}
		for _, mem := range v.enumMembers {
			members[mem.Name] = mem.Value
		}
		raw, _ := json.Marshal(members)
		m["members"] = raw
	case String:
		m["type"] = jstr("string")
		m["minchars"] = jnum(float64(v.minLen))
		if v.hasMaxChars {
			m["maxchars"] = jnum(float64(v.maxChars))
		}
		b, _ := json.Marshal(v.isUTF8)
		m["isUTF8"] = b
	case Blob:
		m["type"] = jstr("blob")
		m["minbytes"] = jnum(float64(v.minLen))
		if v.hasMaxLen {
			m["maxbytes"] = jnum(float64(v.maxLen))
		}
	case Json:
		m["type"] = jstr("json")
	case ArrayBool, ArrayDouble, ArrayInt, ArrayScaled, ArrayEnum, Array:
		m["type"] = jstr("array")
		m["members"] = v.elemProto.ExportType()
		m["minlen"] = jnum(float64(v.arrMinLen))
		if v.hasArrMax {
			m["maxlen"] = jnum(float64(v.arrMaxLen))
		}
	case Tuple:
		m["type"] = jstr("tuple")
		parts := make([]json.RawMessage, len(v.tupleSlots))
		for i, s := range v.tupleSlots {
			parts[i] = s.ExportType()
		}
		raw, _ := json.Marshal(parts)
		m["members"] = raw
	case Struct:
		m["type"] = jstr("struct")
		members := orderedRawObject{}
		for i, k := range v.structKeys {
			members = append(members, kv{k, v.structVals[i].ExportType()})
		}
		m["members"] = members.marshal()
	case Command:
		m["type"] = jstr("command")
		if v.cmdArg != nil {
			m["argument"] = v.cmdArg.ExportType()
		} else {
			m["argument"] = []byte("null")
		}
		if v.cmdRes != nil {
			m["result"] = v.cmdRes.ExportType()
		} else {
			m["result"] = []byte("null")
		}
	default:
		m["type"] = jstr("null")
	}
	for k, raw := range v.additional {
		m[k] = raw
	}
	out := orderedRawObject{}
	for k, raw := range m {
		out = append(out, kv{k, raw})
	}
	return out.marshalTypeFirst()
}

func jstr(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func jnum(f float64) json.RawMessage {
	b, _ := json.Marshal(f)
	return b
}

type kv struct {
	key string
	val json.RawMessage
}

type orderedRawObject []kv

func (o orderedRawObject) marshal() json.RawMessage {
	var buf []byte
	buf = append(buf, '{')
	for i, e := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, _ := json.Marshal(e.key)
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, e.val...)
	}
	buf = append(buf, '}')
	return buf
}

// marshalTypeFirst emits "type" first, then the rest in map iteration order
// (acceptable: callers compare decoded descriptors, not raw bytes).
func (o orderedRawObject) marshalTypeFirst() json.RawMessage {
	var typeKV *kv
	rest := make(orderedRawObject, 0, len(o))
	for i := range o {
		if o[i].key == "type" {
			typeKV = &o[i]
			continue
		}
		rest = append(rest, o[i])
	}
	ordered := orderedRawObject{}
	if typeKV != nil {
		ordered = append(ordered, *typeKV)
	}
	ordered = append(ordered, rest...)
	return ordered.marshal()
}
