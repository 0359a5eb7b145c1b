package accessible

import (
	"github.com/SampleEnvironment/secop-go/pkg/property"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// Callback invokes a command with a validated argument and returns its
// (unvalidated) result.
type Callback func(arg *variant.Variant) (*variant.Variant, error)

// Command is an invocable accessible with optional argument/result types.
type Command struct {
	Name     string
	argType  *variant.Variant
	resType  *variant.Variant
	callback Callback

	Properties *property.List
}

// NewCommand validates name and wires up "datainfo" to parse the command's
// {"type":"command","argument":...,"result":...} descriptor.
func NewCommand(name string, callback Callback) (*Command, error) {
	if err := ValidateIdentifier(name); err != nil {
		return nil, err
	}
	c := &Command{Name: name, callback: callback}
	c.Properties = property.New([]string{"description", "datainfo"}, c.onPropertySet)
	return c, nil
}

func (c *Command) onPropertySet(key string, value *variant.Variant) error {
	if key != "datainfo" {
		return nil
	}
	typ, err := variant.CreateFromDescriptor(value.ExportValue())
	if err != nil {
		return secoperr.Wrap(secoperr.InvalidValue, err, "command %q: invalid datainfo", c.Name)
	}
	if typ.Kind() != variant.Command {
		return secoperr.New(secoperr.InvalidValue, "command %q: datainfo must describe a command", c.Name)
	}
	c.argType = typ.Argument()
	c.resType = typ.Result()
	return nil
}

// AccessibleName implements Accessible.
func (c *Command) AccessibleName() string { return c.Name }

// IsCommand implements Accessible.
func (c *Command) IsCommand() bool { return true }

// DataInfo implements Accessible: the synthesized {"type":"command",...}
// descriptor.
func (c *Command) DataInfo() *variant.Variant {
	return variant.NewCommand(c.argType, c.resType)
}

// PropertyList implements Accessible.
func (c *Command) PropertyList() *property.List { return c.Properties }

// HasCallback reports whether c was constructed with a callback.
func (c *Command) HasCallback() bool { return c.callback != nil }

// Do validates arg against the command's argument type, invokes the
// callback, and validates the result against the result type.
func Do(c *Command, argJSON []byte) (*variant.Variant, error) {
	var arg *variant.Variant
	if c.argType != nil {
		arg = c.argType.Duplicate()
		if err := arg.ImportValue(argJSON, true); err != nil {
			return nil, secoperr.Wrap(secoperr.InvalidValue, err, "command %q: argument rejected by type", c.Name)
		}
	} else if len(argJSON) != 0 && string(argJSON) != "null" {
		return nil, secoperr.New(secoperr.InvalidValue, "command %q takes no argument", c.Name)
	}
	if c.callback == nil {
		return nil, secoperr.New(secoperr.NoGetter, "command %q has no callback", c.Name)
	}
	res, err := c.callback(arg)
	if err != nil {
		return nil, err
	}
	if c.resType == nil {
		return nil, nil
	}
	if res == nil {
		return nil, secoperr.New(secoperr.InvalidValue, "command %q: callback returned no result", c.Name)
	}
	if !c.resType.CompareType(res) {
		return nil, secoperr.New(secoperr.InvalidValue, "command %q: result does not match declared type", c.Name)
	}
	return res, nil
}
