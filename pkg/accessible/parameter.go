// Package accessible implements the SECoP Parameter/Command model: readable
// and writable accessibles owned by a module, their property stores, and
// the read/change/do operations that validate against and mutate their
// cached Variant values.
package accessible

import (
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/property"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// Getter reads a parameter's current value from hardware or simulation.
// hasSigma reports whether sigma is meaningful. A NaN/infinite timestamp is
// replaced by the engine with the current wall clock.
type Getter func() (value *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error)

// Setter applies a requested value and returns the effective value actually
// stored (e.g. after clamping).
type Setter func(requested *variant.Variant) (effective *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error)

// Parameter is one readable and/or writable accessible of a module.
type Parameter struct {
	Name     string
	Writable bool
	Constant bool

	cached    *variant.Variant
	sigma     float64
	hasSigma  bool
	timestamp float64

	pollIntervalMs int

	getter Getter
	setter Setter

	Properties *property.List
}

// NewParameter validates name and wires up the property store's side
// effects ("datainfo" sets the cached type, "pollinterval" sets
// pollIntervalMs, "constant" freezes the value). getter/setter may be nil,
// in which case the owning module runs in external-poll mode for this
// parameter.
func NewParameter(name string, writable bool, getter Getter, setter Setter) (*Parameter, error) {
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}
	p := &Parameter{Name: name, Writable: writable, getter: getter, setter: setter}
	p.Properties = property.New(
		[]string{"description", "datainfo", "pollinterval", "constant", "readonly"},
		p.onPropertySet,
	)
	return p, nil
}

func (p *Parameter) onPropertySet(key string, value *variant.Variant) error {
	switch key {
	case "datainfo":
		typ, err := variant.CreateFromDescriptor(value.ExportValue())
		if err != nil {
			return secoperr.Wrap(secoperr.InvalidValue, err, "parameter %q: invalid datainfo", p.Name)
		}
		p.cached = typ
	case "pollinterval":
		ms, err := pollMsFromVariant(value)
		if err != nil {
			return secoperr.Wrap(secoperr.InvalidValue, err, "parameter %q: invalid pollinterval", p.Name)
		}
		p.pollIntervalMs = ms
	case "constant":
		if p.cached == nil {
			return secoperr.New(secoperr.InvalidValue, "parameter %q: constant requires datainfo to be set first", p.Name)
		}
		lit := p.cached.Duplicate()
		if err := lit.ImportValue(value.ExportValue(), true); err != nil {
			return secoperr.Wrap(secoperr.InvalidValue, err, "parameter %q: constant literal does not match datainfo", p.Name)
		}
		p.Constant = true
		p.cached = lit
		p.timestamp = wallClock()
	}
	return nil
}

func pollMsFromVariant(v *variant.Variant) (int, error) {
	var seconds float64
	switch v.Kind() {
	case variant.Double:
		seconds, _ = v.GetDouble(0, 0)
	case variant.Int, variant.Scaled:
		i, _ := v.GetInteger(0, 0)
		seconds = float64(i)
	default:
		return 0, secoperr.New(secoperr.InvalidValue, "pollinterval must be numeric")
	}
	ms := int(seconds * 1000)
	if ms < 10 {
		ms = 10
	}
	if ms > 3600000 {
		ms = 3600000
	}
	return ms, nil
}

// PollIntervalMs returns the parameter's own poll interval, 0 meaning
// "use the module-wide interval only".
func (p *Parameter) PollIntervalMs() int { return p.pollIntervalMs }

// HasGetter reports whether p was constructed with a getter callback.
func (p *Parameter) HasGetter() bool { return p.getter != nil }

// HasSetter reports whether p was constructed with a setter callback.
func (p *Parameter) HasSetter() bool { return p.setter != nil }

// Cached returns the parameter's last-known (value, sigma, hasSigma,
// timestamp) without issuing a new read.
func (p *Parameter) Cached() (value *variant.Variant, sigma float64, hasSigma bool, timestamp float64) {
	return p.cached, p.sigma, p.hasSigma, p.timestamp
}

// CachedType returns the parameter's declared Variant type (may be nil
// before "datainfo" has been set).
func (p *Parameter) CachedType() *variant.Variant { return p.cached }

// AccessibleName implements Accessible.
func (p *Parameter) AccessibleName() string { return p.Name }

// IsCommand implements Accessible.
func (p *Parameter) IsCommand() bool { return false }

// DataInfo implements Accessible: the canonical type descriptor of the
// parameter's cached variant.
func (p *Parameter) DataInfo() *variant.Variant { return p.cached }

// PropertyList implements Accessible.
func (p *Parameter) PropertyList() *property.List { return p.Properties }

func wallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func substituteTimestamp(ts float64) float64 {
	if ts != ts || ts > 1e300 || ts < -1e300 { // NaN or effectively infinite
		return wallClock()
	}
	return ts
}

// Read issues a read of p: invokes the getter (unless constant, in which
// case the frozen cached value is returned), substitutes the wall clock for
// a missing timestamp, and updates the cache.
func Read(p *Parameter) (value *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error) {
	if p.Constant {
		return p.cached, p.sigma, p.hasSigma, p.timestamp, nil
	}
	if p.getter == nil {
		return nil, 0, false, 0, secoperr.New(secoperr.NoGetter, "parameter %q has no getter", p.Name)
	}
	v, sig, hasSig, ts, err := p.getter()
	if err != nil {
		return nil, 0, false, 0, err
	}
	ts = substituteTimestamp(ts)
	p.cached, p.sigma, p.hasSigma, p.timestamp = v, sig, hasSig, ts
	return v, sig, hasSig, ts, nil
}

// Change validates requested against p's cached type (strict import),
// invokes the setter, and caches the setter's effective value.
func Change(p *Parameter, requested []byte) (effective *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error) {
	if p.Constant {
		return nil, 0, false, 0, secoperr.New(secoperr.Constant, "parameter %q is constant", p.Name)
	}
	if !p.Writable {
		return nil, 0, false, 0, secoperr.New(secoperr.ReadOnly, "parameter %q is read-only", p.Name)
	}
	if p.cached == nil {
		return nil, 0, false, 0, secoperr.New(secoperr.InvalidValue, "parameter %q has no datainfo", p.Name)
	}
	probe := p.cached.Duplicate()
	if err := probe.ImportValue(requested, true); err != nil {
		return nil, 0, false, 0, secoperr.Wrap(secoperr.InvalidValue, err, "parameter %q: value rejected by type", p.Name)
	}
	if p.setter == nil {
		return nil, 0, false, 0, secoperr.New(secoperr.NoSetter, "parameter %q has no setter", p.Name)
	}
	v, sig, hasSig, ts, err := p.setter(probe)
	if err != nil {
		return nil, 0, false, 0, err
	}
	ts = substituteTimestamp(ts)
	p.cached, p.sigma, p.hasSigma, p.timestamp = v, sig, hasSig, ts
	return v, sig, hasSig, ts, nil
}
