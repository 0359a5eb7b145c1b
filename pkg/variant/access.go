package variant

import "fmt"

// GetDouble returns the numeric value at pos. For Double it ignores idx; for
// ArrayDouble it returns element idx's value; for Int/Scaled/Enum it returns
// the integer value widened to float64.
func (v *Variant) GetDouble(pos, idx int) (float64, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	switch n.kind {
	case Double:
		return n.dblVal, nil
	case ArrayDouble:
		e, err := elementAt(n, idx)
		if err != nil {
			return 0, err
		}
		return e.dblVal, nil
	default:
		return 0, fmt.Errorf("variant: GetDouble on kind %s", n.kind)
	}
}

// GetInteger returns the stored integer at pos (Int, Scaled's stored
// integer, or Enum's current value), or an ArrayInt/ArrayScaled/ArrayEnum
// element at idx.
func (v *Variant) GetInteger(pos, idx int) (int64, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	switch n.kind {
	case Int, Scaled:
		return n.intVal, nil
	case Enum:
		return n.enumVal, nil
	case ArrayInt, ArrayScaled:
		e, err := elementAt(n, idx)
		if err != nil {
			return 0, err
		}
		return e.intVal, nil
	case ArrayEnum:
		e, err := elementAt(n, idx)
		if err != nil {
			return 0, err
		}
		return e.enumVal, nil
	default:
		return 0, fmt.Errorf("variant: GetInteger on kind %s", n.kind)
	}
}

// GetBool returns the boolean value at pos, or an ArrayBool element at idx.
func (v *Variant) GetBool(pos, idx int) (bool, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return false, fmt.Errorf("variant: position %d out of range", pos)
	}
	switch n.kind {
	case Bool:
		return n.boolVal, nil
	case ArrayBool:
		e, err := elementAt(n, idx)
		if err != nil {
			return false, err
		}
		return e.boolVal, nil
	default:
		return false, fmt.Errorf("variant: GetBool on kind %s", n.kind)
	}
}

// GetStringBytes returns the raw byte content at pos (String/Blob/Json).
func (v *Variant) GetStringBytes(pos int) ([]byte, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return nil, fmt.Errorf("variant: position %d out of range", pos)
	}
	if !n.kind.isByteArray() {
		return nil, fmt.Errorf("variant: GetStringBytes on kind %s", n.kind)
	}
	out := make([]byte, len(n.bytesVal))
	copy(out, n.bytesVal)
	return out, nil
}

// GetScale returns the Scaled node's scale factor at pos.
func (v *Variant) GetScale(pos int) (float64, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	if n.kind != Scaled {
		return 0, fmt.Errorf("variant: GetScale on kind %s", n.kind)
	}
	return n.scale, nil
}

// GetEnumCount returns the number of declared members of the Enum node at
// pos (type introspection, not the array length of an ArrayEnum value).
func (v *Variant) GetEnumCount(pos int) (int, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	if n.kind != Enum && n.kind != ArrayEnum {
		return 0, fmt.Errorf("variant: GetEnumCount on kind %s", n.kind)
	}
	return len(enumMembersOf(n)), nil
}

// GetEnumName returns the declared name of the idx'th enum member.
func (v *Variant) GetEnumName(pos, idx int) (string, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return "", fmt.Errorf("variant: position %d out of range", pos)
	}
	members := enumMembersOf(n)
	if idx < 0 || idx >= len(members) {
		return "", fmt.Errorf("variant: enum member index %d out of range", idx)
	}
	return members[idx].Name, nil
}

// GetEnumValue returns the declared integer value of the idx'th enum member.
func (v *Variant) GetEnumValue(pos, idx int) (int64, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	members := enumMembersOf(n)
	if idx < 0 || idx >= len(members) {
		return 0, fmt.Errorf("variant: enum member index %d out of range", idx)
	}
	return members[idx].Value, nil
}

func enumMembersOf(n *Variant) []EnumMember {
	if n.kind == ArrayEnum {
		return n.elemProto.enumMembers
	}
	return n.enumMembers
}

// GetArrayLength returns the current element count of the array/byte-array
// node at pos.
func (v *Variant) GetArrayLength(pos int) (int, error) {
	n, ok := v.nodeAt(pos)
	if !ok {
		return 0, fmt.Errorf("variant: position %d out of range", pos)
	}
	if !n.kind.isArray() && !n.kind.isByteArray() {
		return 0, fmt.Errorf("variant: GetArrayLength on kind %s", n.kind)
	}
	return countFor(n), nil
}

func elementAt(n *Variant, idx int) (*Variant, error) {
	if idx < 0 || idx >= len(n.elements) {
		return nil, fmt.Errorf("variant: array index %d out of range (len %d)", idx, len(n.elements))
	}
	return n.elements[idx], nil
}
