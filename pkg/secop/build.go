package secop

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/SampleEnvironment/secop-go/pkg/config"
	"github.com/SampleEnvironment/secop-go/pkg/node"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// memoryValue is a config-driven parameter's backing store: a datainfo
// descriptor and the last value imported into it, guarded by its own lock
// since getters/setters run on whatever goroutine called read/change.
type memoryValue struct {
	mu   sync.Mutex
	cell *variant.Variant
}

func newMemoryValue(typ *variant.Variant, initial any) (*memoryValue, error) {
	cell := typ.Duplicate()
	if initial != nil {
		raw, err := json.Marshal(initial)
		if err != nil {
			return nil, fmt.Errorf("secop: marshal initial value: %w", err)
		}
		if err := cell.ImportValue(raw, false); err != nil {
			return nil, fmt.Errorf("secop: initial value rejected: %w", err)
		}
	}
	return &memoryValue{cell: cell}, nil
}

func (m *memoryValue) get() (*variant.Variant, float64, bool, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cell.Duplicate(), 0, false, 0, nil
}

func (m *memoryValue) set(requested *variant.Variant) (*variant.Variant, float64, bool, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cell = requested.Duplicate()
	return m.cell.Duplicate(), 0, false, 0, nil
}

// BuildNode registers one config.NodeConfig into dir: every parameter is
// backed by an in-memory cell (no real hardware getter/setter exists for a
// config-declared node), and every command is a no-op that acknowledges its
// argument. This is the shape "secopd serve"/"secopd describe" builds from
// a YAML file; callers wiring real hardware use dir's builder API
// (AddReadableParameter etc.) directly instead. BuildNode does not call
// node_complete; the caller does that once it knows whether it wants a
// scheduler update callback wired in (Library.Serve) or not ("secopd
// describe"'s dry run).
func BuildNode(dir *node.Directory, nc config.NodeConfig) (*node.Node, error) {
	if _, err := dir.CreateNode(nc.ID, nc.Description, nc.Port); err != nil {
		return nil, err
	}
	for _, mc := range nc.Modules {
		if err := buildModule(dir, nc.ID, mc); err != nil {
			return nil, err
		}
	}
	return dir.Node(nc.ID), nil
}

func buildModule(dir *node.Directory, nodeID string, mc config.ModuleConfig) error {
	if _, err := dir.AddModule(nodeID, mc.Name); err != nil {
		return err
	}
	if mc.Description != "" {
		if _, err := dir.AddProperty(nodeID, "description", stringVariant(mc.Description)); err != nil {
			return err
		}
	}
	if mc.PollMs > 0 {
		pollVal, err := intProperty(mc.PollMs)
		if err != nil {
			return err
		}
		if _, err := dir.AddProperty(nodeID, "pollinterval", pollVal); err != nil {
			return err
		}
	}
	for _, ac := range mc.Accessibles {
		if err := buildAccessible(dir, nodeID, mc.Name, ac); err != nil {
			return fmt.Errorf("secop: module %q accessible %q: %w", mc.Name, ac.Name, err)
		}
	}
	return nil
}

func buildAccessible(dir *node.Directory, nodeID, moduleName string, ac config.AccessibleConfig) error {
	if ac.Kind == "command" {
		_, err := dir.AddCommand(nodeID, moduleName, ac.Name, func(arg *variant.Variant) (*variant.Variant, error) {
			return nil, nil
		})
		if err != nil {
			return err
		}
		if ac.Description != "" {
			_, err = dir.AddProperty(nodeID, "description", stringVariant(ac.Description))
		}
		return err
	}

	descriptor, err := json.Marshal(ac.Datainfo)
	if err != nil {
		return fmt.Errorf("marshal datainfo: %w", err)
	}
	typ, err := variant.CreateFromDescriptor(descriptor)
	if err != nil {
		return fmt.Errorf("datainfo: %w", err)
	}
	backing, err := newMemoryValue(typ, ac.Initial)
	if err != nil {
		return err
	}

	getter := func() (*variant.Variant, float64, bool, float64, error) { return backing.get() }
	setter := func(requested *variant.Variant) (*variant.Variant, float64, bool, float64, error) {
		return backing.set(requested)
	}
	if ac.Writable {
		if _, err := dir.AddWritableParameter(nodeID, moduleName, ac.Name, getter, setter); err != nil {
			return err
		}
	} else {
		if _, err := dir.AddReadableParameter(nodeID, moduleName, ac.Name, getter); err != nil {
			return err
		}
	}

	if _, err := dir.AddProperty(nodeID, "datainfo", jsonVariant(descriptor)); err != nil {
		return err
	}
	if ac.Description != "" {
		if _, err := dir.AddProperty(nodeID, "description", stringVariant(ac.Description)); err != nil {
			return err
		}
	}
	if ac.Unit != "" {
		if _, err := dir.AddProperty(nodeID, "unit", stringVariant(ac.Unit)); err != nil {
			return err
		}
	}
	return nil
}

func jsonVariant(raw []byte) *variant.Variant {
	v := variant.NewJSON()
	_ = v.ImportValue(raw, true)
	return v
}

func stringVariant(s string) *variant.Variant {
	raw, _ := json.Marshal(s)
	return jsonVariant(raw)
}

func intProperty(n int) (*variant.Variant, error) {
	v, err := variant.NewInt(true, 0, false, 0)
	if err != nil {
		return nil, secoperr.Wrap(secoperr.Internal, err, "build pollinterval type")
	}
	raw := []byte(fmt.Sprintf("%d", n))
	if err := v.ImportValue(raw, true); err != nil {
		return nil, secoperr.Wrap(secoperr.Internal, err, "build pollinterval value")
	}
	return v, nil
}
