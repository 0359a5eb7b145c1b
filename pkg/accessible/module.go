package accessible

import (
	"strings"

	"github.com/SampleEnvironment/secop-go/pkg/property"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// Accessible is the common surface Parameter and Command satisfy, used for
// declaration-order iteration and descriptive JSON generation.
type Accessible interface {
	AccessibleName() string
	IsCommand() bool
	DataInfo() *variant.Variant
	PropertyList() *property.List
}

// Module is a named, case-insensitive-unique collection of accessibles in
// declaration order, with its own property store and wanted poll interval.
type Module struct {
	Name         string
	order        []string
	lower        map[string]int
	items        []Accessible
	wantedPollMs int
	Properties   *property.List
	ExternalPoll bool // true once this module has no getter/setter anywhere
}

// NewModule validates name and sets up the module's property store
// ("pollinterval" sets wantedPollMs, clamped to [10ms, 3600s]).
func NewModule(name string) (*Module, error) {
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}
	m := &Module{Name: name, lower: map[string]int{}, wantedPollMs: 10000}
	m.Properties = property.New([]string{"description", "pollinterval", "group", "visibility"}, m.onPropertySet)
	return m, nil
}

func (m *Module) onPropertySet(key string, value *variant.Variant) error {
	if key != "pollinterval" {
		return nil
	}
	ms, err := pollMsFromVariant(value)
	if err != nil {
		return secoperr.Wrap(secoperr.InvalidValue, err, "module %q: invalid pollinterval", m.Name)
	}
	m.wantedPollMs = ms
	return nil
}

// WantedPollMs returns the module-wide poll interval.
func (m *Module) WantedPollMs() int { return m.wantedPollMs }

// Add inserts an accessible, rejecting a case-insensitive duplicate name.
func (m *Module) Add(a Accessible) error {
	lk := strings.ToLower(a.AccessibleName())
	if _, ok := m.lower[lk]; ok {
		return secoperr.New(secoperr.NameAlreadyUsed, "module %q: accessible %q already exists", m.Name, a.AccessibleName())
	}
	m.lower[lk] = len(m.order)
	m.order = append(m.order, a.AccessibleName())
	m.items = append(m.items, a)
	return nil
}

// Get returns the accessible named name (case-insensitive), or nil.
func (m *Module) Get(name string) Accessible {
	if idx, ok := m.lower[strings.ToLower(name)]; ok {
		return m.items[idx]
	}
	return nil
}

// Accessibles returns all accessibles in declaration order.
func (m *Module) Accessibles() []Accessible {
	out := make([]Accessible, len(m.items))
	copy(out, m.items)
	return out
}

// Parameters returns only the Parameter accessibles, in declaration order.
func (m *Module) Parameters() []*Parameter {
	var out []*Parameter
	for _, a := range m.items {
		if p, ok := a.(*Parameter); ok {
			out = append(out, p)
		}
	}
	return out
}

// AllCallbacksInstalled reports whether every accessible in m has a
// callback (getter or setter for a parameter, callback for a command).
// A module with no accessibles at all counts as having callbacks
// installed, since there is nothing to poll externally.
func (m *Module) AllCallbacksInstalled() bool {
	for _, a := range m.items {
		switch v := a.(type) {
		case *Parameter:
			if !v.HasGetter() && !v.HasSetter() {
				return false
			}
		case *Command:
			if !v.HasCallback() {
				return false
			}
		}
	}
	return true
}
