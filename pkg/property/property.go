// Package property implements the insertion-ordered, case-insensitive
// property list attached to every node, module, parameter, and command.
package property

import (
	"strings"

	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// SideEffect is invoked after a property with a recognised side-effecting
// key (e.g. "pollinterval", "datainfo", "constant") is accepted. Owner
// packages register one at construction time instead of pkg/property
// importing pkg/accessible/pkg/scheduler directly, which would create an
// import cycle.
type SideEffect func(key string, value *variant.Variant) error

// List is an ordered, case-insensitive-keyed property store.
type List struct {
	keys       []string
	lower      map[string]int
	values     []*variant.Variant
	auto       []bool
	recognised map[string]bool
	onSet      SideEffect
}

// New returns an empty property list. recognisedKeys names the keys (besides
// any beginning with "_") that do not trigger WarningCustomProperty for this
// owner kind. onSet, if non-nil, is called after a side-effecting key is
// accepted; a non-nil error from onSet fails the Add call.
func New(recognisedKeys []string, onSet SideEffect) *List {
	rec := make(map[string]bool, len(recognisedKeys))
	for _, k := range recognisedKeys {
		rec[strings.ToLower(k)] = true
	}
	return &List{lower: map[string]int{}, recognised: rec, onSet: onSet}
}

var sideEffectKeys = map[string]bool{
	"pollinterval": true,
	"datainfo":     true,
	"constant":     true,
}

// Add inserts or overwrites a property. auto=true marks the value as an
// implementation-provided default, which may later be silently overwritten
// by a non-auto Add (after which it loses its auto flag).
func (l *List) Add(key string, value *variant.Variant, auto bool) (secoperr.AddResult, error) {
	if !isValidKey(key) {
		return secoperr.ResultInvalidName, nil
	}
	lk := strings.ToLower(key)
	result := secoperr.Success
	if value.Kind() == variant.Null {
		result = secoperr.WarningNoDescription
	} else if !l.recognised[lk] && !strings.HasPrefix(key, "_") {
		result = secoperr.WarningCustomProperty
	}

	if idx, ok := l.lower[lk]; ok {
		if !l.auto[idx] {
			return secoperr.ResultNameAlreadyUsed, nil
		}
		l.values[idx] = value
		l.auto[idx] = auto
		if res, err := l.finish(key, value); err != nil {
			return res, err
		}
		return result, nil
	}

	l.lower[lk] = len(l.keys)
	l.keys = append(l.keys, key)
	l.values = append(l.values, value)
	l.auto = append(l.auto, auto)

	if res, err := l.finish(key, value); err != nil {
		return res, err
	}
	return result, nil
}

func (l *List) finish(key string, value *variant.Variant) (secoperr.AddResult, error) {
	if sideEffectKeys[strings.ToLower(key)] && l.onSet != nil {
		if err := l.onSet(strings.ToLower(key), value); err != nil {
			return secoperr.ResultInvalidName, err
		}
	}
	return secoperr.Success, nil
}

// isValidKey accepts the SECoP identifier rule plus a leading underscore
// extension prefix; property keys are otherwise unconstrained in length
// since they are not accessible identifiers.
func isValidKey(key string) bool {
	if key == "" {
		return false
	}
	c := key[0]
	if !(c == '_' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
		return false
	}
	for i := 1; i < len(key); i++ {
		c := key[i]
		if !(c == '_' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

// Get returns the value stored for key (case-insensitive), or nil if absent.
func (l *List) Get(key string) *variant.Variant {
	if idx, ok := l.lower[strings.ToLower(key)]; ok {
		return l.values[idx]
	}
	return nil
}

// IsAuto reports whether key's current value was set with auto=true.
func (l *List) IsAuto(key string) bool {
	idx, ok := l.lower[strings.ToLower(key)]
	return ok && l.auto[idx]
}

// Keys returns all keys in insertion order.
func (l *List) Keys() []string {
	out := make([]string, len(l.keys))
	copy(out, l.keys)
	return out
}

// Each iterates properties in declaration order.
func (l *List) Each(fn func(key string, value *variant.Variant)) {
	for i, k := range l.keys {
		fn(k, l.values[i])
	}
}
