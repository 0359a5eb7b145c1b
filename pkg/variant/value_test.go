package variant

import (
	"math"
	"testing"
)

func mustDouble(t *testing.T, min, max float64) *Variant {
	t.Helper()
	v, err := NewDouble(min, max)
	if err != nil {
		t.Fatalf("NewDouble: %v", err)
	}
	return v
}

func TestValueRoundTripScalars(t *testing.T) {
	d := mustDouble(t, math.NaN(), math.NaN())
	if err := d.ImportValue([]byte("3.5"), true); err != nil {
		t.Fatalf("ImportValue: %v", err)
	}
	if string(d.ExportValue()) != "3.5" {
		t.Fatalf("ExportValue = %s, want 3.5", d.ExportValue())
	}

	b := NewBool(false)
	if err := b.ImportValue([]byte("true"), true); err != nil {
		t.Fatalf("ImportValue: %v", err)
	}
	if string(b.ExportValue()) != "true" {
		t.Fatalf("ExportValue = %s, want true", b.ExportValue())
	}

	s, _ := NewString(0, 0, false, true, 0, false)
	if err := s.ImportValue([]byte(`"hello"`), true); err != nil {
		t.Fatalf("ImportValue: %v", err)
	}
	if string(s.ExportValue()) != `"hello"` {
		t.Fatalf("ExportValue = %s, want \"hello\"", s.ExportValue())
	}
}

func TestValueDoubleBoundsNoSideEffectOnFailure(t *testing.T) {
	d := mustDouble(t, 0, 10)
	if err := d.ImportValue([]byte("5"), true); err != nil {
		t.Fatalf("ImportValue: %v", err)
	}
	if err := d.ImportValue([]byte("50"), true); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if got, _ := d.GetDouble(0, 0); got != 5 {
		t.Fatalf("value changed after failed import: got %v, want 5", got)
	}
}

func TestValueDoubleSpecialTokensNonStrictOnly(t *testing.T) {
	d := mustDouble(t, math.NaN(), math.NaN())
	if err := d.ImportValue([]byte(`"inf"`), true); err == nil {
		t.Fatalf("strict mode should reject string-encoded inf")
	}
	if err := d.ImportValue([]byte(`"inf"`), false); err != nil {
		t.Fatalf("non-strict ImportValue(inf): %v", err)
	}
	got, _ := d.GetDouble(0, 0)
	if !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf, got %v", got)
	}
	if err := d.ImportValue([]byte(`"nan"`), false); err != nil {
		t.Fatalf("non-strict ImportValue(nan): %v", err)
	}
	got, _ = d.GetDouble(0, 0)
	if !math.IsNaN(got) {
		t.Fatalf("expected NaN, got %v", got)
	}
}

func TestValueBoolTokensNonStrictOnly(t *testing.T) {
	b := NewBool(false)
	if err := b.ImportValue([]byte(`"yes"`), true); err == nil {
		t.Fatalf("strict mode should reject token bools")
	}
	if err := b.ImportValue([]byte(`"yes"`), false); err != nil {
		t.Fatalf("non-strict ImportValue(yes): %v", err)
	}
	if v, _ := b.GetBool(0, 0); !v {
		t.Fatalf("expected true")
	}
	if err := b.ImportValue([]byte("0"), false); err != nil {
		t.Fatalf("non-strict ImportValue(0): %v", err)
	}
	if v, _ := b.GetBool(0, 0); v {
		t.Fatalf("expected false")
	}
}

func TestValueEnumStrictRejectsUnknownAndNames(t *testing.T) {
	e, err := NewEnum([]EnumMember{{"off", 0}, {"on", 1}})
	if err != nil {
		t.Fatalf("NewEnum: %v", err)
	}
	if err := e.ImportValue([]byte("1"), true); err != nil {
		t.Fatalf("strict ImportValue(1): %v", err)
	}
	if err := e.ImportValue([]byte("5"), true); err == nil {
		t.Fatalf("expected error for undeclared enum value")
	}
	if err := e.ImportValue([]byte(`"on"`), true); err == nil {
		t.Fatalf("strict mode should reject enum member name strings")
	}
	if err := e.ImportValue([]byte(`"on"`), false); err != nil {
		t.Fatalf("non-strict ImportValue(\"on\"): %v", err)
	}
	if got, _ := e.GetInteger(0, 0); got != 1 {
		t.Fatalf("GetInteger = %d, want 1", got)
	}
}

func TestValueArrayScalarWrapNonStrictOnly(t *testing.T) {
	proto := mustDouble(t, math.NaN(), math.NaN())
	arr, err := NewArray(proto, 0, 0, false)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	if err := arr.ImportValue([]byte("3.0"), true); err == nil {
		t.Fatalf("strict mode should reject scalar-for-array")
	}
	if err := arr.ImportValue([]byte("3.0"), false); err != nil {
		t.Fatalf("non-strict ImportValue(scalar): %v", err)
	}
	n, _ := arr.GetArrayLength(0)
	if n != 1 {
		t.Fatalf("GetArrayLength = %d, want 1", n)
	}
}

func TestValueTupleGrowthNonStrictOnly(t *testing.T) {
	a := mustDouble(t, math.NaN(), math.NaN())
	tup, err := NewTuple([]*Variant{a})
	if err != nil {
		t.Fatalf("NewTuple: %v", err)
	}
	if err := tup.ImportValue([]byte("[1,2,3]"), true); err == nil {
		t.Fatalf("strict mode should reject arity mismatch")
	}
	if err := tup.ImportValue([]byte("[1,2,3]"), false); err != nil {
		t.Fatalf("non-strict ImportValue grow: %v", err)
	}
	if len(tup.tupleSlots) != 3 {
		t.Fatalf("tuple did not grow: len=%d", len(tup.tupleSlots))
	}
}

func TestValueStructUnknownKeyStrictRejectsNonStrictInfers(t *testing.T) {
	st := NewStruct()
	if err := st.SetField("value", mustDouble(t, math.NaN(), math.NaN())); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	if err := st.ImportValue([]byte(`{"value":1,"extra":true}`), true); err == nil {
		t.Fatalf("strict mode should reject unknown struct key")
	}
	if err := st.ImportValue([]byte(`{"value":1,"extra":true}`), false); err != nil {
		t.Fatalf("non-strict ImportValue with unknown key: %v", err)
	}
	extra := st.Field("extra")
	if extra == nil || extra.Kind() != Bool {
		t.Fatalf("expected inferred bool field \"extra\"")
	}
}

func TestValueExportCommandIsResultValue(t *testing.T) {
	res := mustDouble(t, math.NaN(), math.NaN())
	_ = res.ImportValue([]byte("42"), true)
	cmd := NewCommand(nil, res)
	if string(cmd.ExportValue()) != "42" {
		t.Fatalf("ExportValue(command) = %s, want 42", cmd.ExportValue())
	}
	empty := NewCommand(nil, nil)
	if string(empty.ExportValue()) != "null" {
		t.Fatalf("ExportValue(command w/o result) = %s, want null", empty.ExportValue())
	}
}
