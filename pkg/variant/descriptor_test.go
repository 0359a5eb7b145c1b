package variant

import (
	"encoding/json"
	"testing"
)

func roundTripType(t *testing.T, descriptor string) *Variant {
	t.Helper()
	v, err := CreateFromDescriptor([]byte(descriptor))
	if err != nil {
		t.Fatalf("CreateFromDescriptor(%s): %v", descriptor, err)
	}
	out := v.ExportType()
	v2, err := CreateFromDescriptor(out)
	if err != nil {
		t.Fatalf("re-parse of exported type %s: %v", out, err)
	}
	if !v.CompareType(v2) {
		t.Fatalf("round trip changed type: in=%s out=%s", descriptor, out)
	}
	return v
}

func TestDescriptorRoundTrip(t *testing.T) {
	cases := []string{
		`{"type":"bool"}`,
		`{"type":"int","min":0,"max":100}`,
		`{"type":"double"}`,
		`{"type":"double","min":-5,"max":5}`,
		`{"type":"scaled","scale":0.1,"min":0,"max":1000}`,
		`{"type":"enum","members":{"off":0,"on":1,"error":2}}`,
		`{"type":"string","minchars":0,"maxchars":64}`,
		`{"type":"blob","minbytes":0,"maxbytes":16}`,
		`{"type":"json"}`,
		`{"type":"array","members":{"type":"double"},"minlen":0,"maxlen":10}`,
		`{"type":"tuple","members":[{"type":"double"},{"type":"string"}]}`,
		`{"type":"struct","members":{"value":{"type":"double"},"status":{"type":"enum","members":{"idle":0,"busy":1}}}}`,
		`{"type":"command","argument":null,"result":{"type":"double"}}`,
	}
	for _, c := range cases {
		roundTripType(t, c)
	}
}

func TestDescriptorPreservesEnumOrder(t *testing.T) {
	v, err := CreateFromDescriptor([]byte(`{"type":"enum","members":{"zulu":0,"alpha":1,"mike":2}}`))
	if err != nil {
		t.Fatalf("CreateFromDescriptor: %v", err)
	}
	if v.enumMembers[0].Name != "zulu" || v.enumMembers[1].Name != "alpha" || v.enumMembers[2].Name != "mike" {
		t.Fatalf("enum member order not preserved: %+v", v.enumMembers)
	}
}

func TestDescriptorPreservesStructOrder(t *testing.T) {
	v, err := CreateFromDescriptor([]byte(`{"type":"struct","members":{"z":{"type":"bool"},"a":{"type":"bool"},"m":{"type":"bool"}}}`))
	if err != nil {
		t.Fatalf("CreateFromDescriptor: %v", err)
	}
	names := v.FieldNames()
	if names[0] != "z" || names[1] != "a" || names[2] != "m" {
		t.Fatalf("struct field order not preserved: %v", names)
	}
}

func TestDescriptorUnknownKeysPreservedAsAdditional(t *testing.T) {
	v, err := CreateFromDescriptor([]byte(`{"type":"double","unit":"K","min":0}`))
	if err != nil {
		t.Fatalf("CreateFromDescriptor: %v", err)
	}
	raw, ok := v.Additional()["unit"]
	if !ok {
		t.Fatalf("expected \"unit\" to be preserved in Additional")
	}
	var unit string
	if err := json.Unmarshal(raw, &unit); err != nil || unit != "K" {
		t.Fatalf("unit = %s, want \"K\"", raw)
	}
	out := v.ExportType()
	if !json.Valid(out) {
		t.Fatalf("ExportType produced invalid JSON: %s", out)
	}
}

func TestDescriptorRejectsBadScale(t *testing.T) {
	if _, err := CreateFromDescriptor([]byte(`{"type":"scaled","scale":0}`)); err == nil {
		t.Fatalf("expected error for non-positive scale")
	}
	if _, err := CreateFromDescriptor([]byte(`{"type":"scaled","scale":-1}`)); err == nil {
		t.Fatalf("expected error for negative scale")
	}
}

func TestDescriptorRejectsInvertedBounds(t *testing.T) {
	if _, err := CreateFromDescriptor([]byte(`{"type":"int","min":10,"max":0}`)); err == nil {
		t.Fatalf("expected error for min > max")
	}
}

func TestDescriptorUnknownType(t *testing.T) {
	if _, err := CreateFromDescriptor([]byte(`{"type":"nonsense"}`)); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
