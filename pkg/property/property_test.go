package property

import (
	"testing"

	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

func TestAddSuccessAndOrder(t *testing.T) {
	l := New([]string{"description", "unit"}, nil)
	if res, err := l.Add("description", variant.NewBool(true), false); err != nil || res != secoperr.Success {
		t.Fatalf("Add(description) = %v, %v", res, err)
	}
	if res, _ := l.Add("unit", variant.NewBool(false), false); res != secoperr.Success {
		t.Fatalf("Add(unit) = %v", res)
	}
	keys := l.Keys()
	if len(keys) != 2 || keys[0] != "description" || keys[1] != "unit" {
		t.Fatalf("Keys() = %v", keys)
	}
}

func TestAddWarningNoDescription(t *testing.T) {
	l := New([]string{"description"}, nil)
	res, err := l.Add("description", variant.NewNull(), false)
	if err != nil || res != secoperr.WarningNoDescription {
		t.Fatalf("Add(null) = %v, %v", res, err)
	}
}

func TestAddWarningCustomProperty(t *testing.T) {
	l := New([]string{"description"}, nil)
	res, err := l.Add("mystery", variant.NewBool(true), false)
	if err != nil || res != secoperr.WarningCustomProperty {
		t.Fatalf("Add(mystery) = %v, %v", res, err)
	}
}

func TestAddUnderscorePrefixExemptFromCustomWarning(t *testing.T) {
	l := New([]string{"description"}, nil)
	res, _ := l.Add("_vendor", variant.NewBool(true), false)
	if res != secoperr.Success {
		t.Fatalf("Add(_vendor) = %v, want Success", res)
	}
}

func TestAddNameAlreadyUsedForNonAutoDuplicate(t *testing.T) {
	l := New([]string{"description"}, nil)
	_, _ = l.Add("description", variant.NewBool(true), false)
	res, _ := l.Add("description", variant.NewBool(false), false)
	if res != secoperr.ResultNameAlreadyUsed {
		t.Fatalf("Add(duplicate) = %v, want NameAlreadyUsed", res)
	}
}

func TestAddNameAlreadyUsedWhenAutoAddTargetsFinalizedValue(t *testing.T) {
	l := New([]string{"description"}, nil)
	_, _ = l.Add("description", variant.NewBool(true), false)
	res, _ := l.Add("description", variant.NewBool(false), true)
	if res != secoperr.ResultNameAlreadyUsed {
		t.Fatalf("Add(auto over non-auto) = %v, want NameAlreadyUsed", res)
	}
	if l.IsAuto("description") {
		t.Fatalf("rejected auto Add must not steal the auto flag back")
	}
}

func TestAutoPropertyFreelyOverwritten(t *testing.T) {
	l := New([]string{"description"}, nil)
	_, _ = l.Add("description", variant.NewBool(true), true)
	res, err := l.Add("description", variant.NewBool(false), false)
	if err != nil || res != secoperr.Success {
		t.Fatalf("Add(overwrite auto) = %v, %v", res, err)
	}
	if l.IsAuto("description") {
		t.Fatalf("expected overwrite to clear auto flag")
	}
}

func TestAddInvalidName(t *testing.T) {
	l := New(nil, nil)
	res, _ := l.Add("1bad", variant.NewBool(true), false)
	if res != secoperr.ResultInvalidName {
		t.Fatalf("Add(1bad) = %v, want InvalidName", res)
	}
}

func TestSideEffectCallback(t *testing.T) {
	var gotKey string
	l := New([]string{"pollinterval"}, func(key string, value *variant.Variant) error {
		gotKey = key
		return nil
	})
	d, _ := variant.NewDouble(0, 3600)
	_ = d.ImportValue([]byte("1.5"), true)
	if _, err := l.Add("pollinterval", d, false); err != nil {
		t.Fatalf("Add(pollinterval): %v", err)
	}
	if gotKey != "pollinterval" {
		t.Fatalf("side effect not invoked, gotKey=%q", gotKey)
	}
}
