// Package node implements the process-wide node directory: named nodes,
// each a TCP listener fronting a tree of modules and accessibles, plus the
// add-focus builder API used to populate that tree before node_complete.
package node

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/property"
	"github.com/SampleEnvironment/secop-go/pkg/scheduler"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

func nodeNotFound(id string) error {
	return secoperr.New(secoperr.NodeNotFound, "node %q not found", id)
}

// Directory is the explicit handle returned by Init; a process-global
// default lives in DefaultDirectory for callers that don't need more than
// one (§9: an explicit handle instead of a singleton).
type Directory struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	order  []string
	focus  map[string]focusPoint // per-node add-focus, keyed by node id
}

// Init returns a fresh, empty Directory.
func Init() *Directory {
	return &Directory{
		nodes: map[string]*Node{},
		focus: map[string]focusPoint{},
	}
}

// DefaultDirectory is the process-global convenience handle (§9).
var DefaultDirectory = Init()

// focusPoint names the current add_property target within a node, set by
// SetAddFocus: either the node itself, a module, or an accessible.
type focusPoint struct {
	module     string
	accessible string
}

// Node is a top-level endpoint: an equipment id, a TCP listener, and an
// ordered, case-insensitive-unique collection of modules.
type Node struct {
	ID         string
	ListenPort int
	Properties *property.List
	listener   *Listener
	schedulers map[string]*scheduler.Scheduler
	warnings   []secoperr.WarningEvent
	complete   bool
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	order   []string
	lower   map[string]int
	modules []*accessible.Module
}

// CreateNode registers a new node under id, returning BadProtocol-shaped
// error via secoperr on a duplicate id.
func (d *Directory) CreateNode(id, description string, port int) (*Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.nodes[id]; ok {
		return nil, secoperr.New(secoperr.NameAlreadyUsed, "node %q already exists", id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		ID:         id,
		ListenPort: port,
		lower:      map[string]int{},
		schedulers: map[string]*scheduler.Scheduler{},
		ctx:        ctx,
		cancel:     cancel,
	}
	n.Properties = property.New([]string{"description"}, nil)
	if _, err := n.Properties.Add("description", descriptionVariant(description), true); err != nil {
		return nil, err
	}
	d.nodes[id] = n
	d.order = append(d.order, id)
	d.focus[id] = focusPoint{}
	return n, nil
}

func descriptionVariant(s string) *variant.Variant {
	str, _ := variant.NewString(0, 0, false, true, 0, false)
	_ = str.ImportValue([]byte(fmt.Sprintf("%q", s)), true)
	return str
}

// DestroyNode stops the node's listener and schedulers and removes it.
func (d *Directory) DestroyNode(id string) error {
	d.mu.Lock()
	n, ok := d.nodes[id]
	if !ok {
		d.mu.Unlock()
		return nodeNotFound(id)
	}
	delete(d.nodes, id)
	delete(d.focus, id)
	for i, nid := range d.order {
		if nid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancel()
	if n.listener != nil {
		n.listener.Close()
	}
	for _, s := range n.schedulers {
		s.Stop()
	}
	return nil
}

// Node returns the node registered under id, or nil.
func (d *Directory) Node(id string) *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodes[id]
}

// Nodes returns all registered node ids in creation order.
func (d *Directory) Nodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// AddModule appends a new, empty module to node and focuses on it.
func (d *Directory) AddModule(nodeID, name string) (*accessible.Module, error) {
	n := d.Node(nodeID)
	if n == nil {
		return nil, secoperr.New(secoperr.NodeNotFound, "node %q not found", nodeID)
	}
	m, err := accessible.NewModule(name)
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	lk := strings.ToLower(name)
	if _, dup := n.lower[lk]; dup {
		n.mu.Unlock()
		return nil, secoperr.New(secoperr.NameAlreadyUsed, "node %q: module %q already exists", nodeID, name)
	}
	n.lower[lk] = len(n.order)
	n.order = append(n.order, name)
	n.modules = append(n.modules, m)
	n.mu.Unlock()

	d.mu.Lock()
	d.focus[nodeID] = focusPoint{module: name}
	d.mu.Unlock()
	return m, nil
}

// AddReadableParameter adds a parameter with a getter (writable=false
// unless a setter is also supplied via AddWritableParameter) and focuses
// add_property on it.
func (d *Directory) AddReadableParameter(nodeID, moduleName, paramName string, getter accessible.Getter) (*accessible.Parameter, error) {
	return d.addParameter(nodeID, moduleName, paramName, false, getter, nil)
}

// AddWritableParameter adds a writable parameter with optional getter and
// setter and focuses add_property on it.
func (d *Directory) AddWritableParameter(nodeID, moduleName, paramName string, getter accessible.Getter, setter accessible.Setter) (*accessible.Parameter, error) {
	return d.addParameter(nodeID, moduleName, paramName, true, getter, setter)
}

func (d *Directory) addParameter(nodeID, moduleName, paramName string, writable bool, getter accessible.Getter, setter accessible.Setter) (*accessible.Parameter, error) {
	m, err := d.module(nodeID, moduleName)
	if err != nil {
		return nil, err
	}
	p, err := accessible.NewParameter(paramName, writable, getter, setter)
	if err != nil {
		return nil, err
	}
	if err := m.Add(p); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.focus[nodeID] = focusPoint{module: moduleName, accessible: paramName}
	d.mu.Unlock()
	return p, nil
}

// AddCommand adds a command to a module and focuses add_property on it.
func (d *Directory) AddCommand(nodeID, moduleName, cmdName string, callback accessible.Callback) (*accessible.Command, error) {
	m, err := d.module(nodeID, moduleName)
	if err != nil {
		return nil, err
	}
	c, err := accessible.NewCommand(cmdName, callback)
	if err != nil {
		return nil, err
	}
	if err := m.Add(c); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.focus[nodeID] = focusPoint{module: moduleName, accessible: cmdName}
	d.mu.Unlock()
	return c, nil
}

func (d *Directory) module(nodeID, moduleName string) (*accessible.Module, error) {
	n := d.Node(nodeID)
	if n == nil {
		return nil, secoperr.New(secoperr.NodeNotFound, "node %q not found", nodeID)
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	idx, ok := n.lower[strings.ToLower(moduleName)]
	if !ok {
		return nil, secoperr.New(secoperr.ItemNotFound, "node %q: module %q not found", nodeID, moduleName)
	}
	return n.modules[idx], nil
}

// SetAddFocus redirects subsequent AddProperty calls to path, one of "",
// "<module>", or "<module>:<accessible>".
func (d *Directory) SetAddFocus(nodeID, path string) error {
	if d.Node(nodeID) == nil {
		return secoperr.New(secoperr.NodeNotFound, "node %q not found", nodeID)
	}
	if path == "" {
		d.mu.Lock()
		d.focus[nodeID] = focusPoint{}
		d.mu.Unlock()
		return nil
	}
	moduleName, accessibleName, _ := strings.Cut(path, ":")
	if moduleName != "" {
		if _, err := d.module(nodeID, moduleName); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.focus[nodeID] = focusPoint{module: moduleName, accessible: accessibleName}
	d.mu.Unlock()
	return nil
}

// AddProperty sets key=value on whatever AddModule/AddReadableParameter/
// AddWritableParameter/AddCommand/SetAddFocus last focused, accumulating a
// secoperr.WarningEvent for non-fatal outcomes.
func (d *Directory) AddProperty(nodeID, key string, value *variant.Variant) (secoperr.AddResult, error) {
	n := d.Node(nodeID)
	if n == nil {
		return secoperr.ResultInvalidName, secoperr.New(secoperr.NodeNotFound, "node %q not found", nodeID)
	}
	d.mu.RLock()
	fp := d.focus[nodeID]
	d.mu.RUnlock()

	var list *property.List
	path := nodeID
	switch {
	case fp.module == "":
		list = n.Properties
	case fp.accessible == "":
		m, err := d.module(nodeID, fp.module)
		if err != nil {
			return secoperr.ResultInvalidName, err
		}
		list = m.Properties
		path = nodeID + ":" + fp.module
	default:
		m, err := d.module(nodeID, fp.module)
		if err != nil {
			return secoperr.ResultInvalidName, err
		}
		a := m.Get(fp.accessible)
		if a == nil {
			return secoperr.ResultInvalidName, secoperr.New(secoperr.ItemNotFound, "accessible %q not found", fp.accessible)
		}
		list = a.PropertyList()
		path = nodeID + ":" + fp.module + ":" + fp.accessible
	}

	result, err := list.Add(key, value, false)
	n.recordWarning(result, path, key)
	return result, err
}

func (n *Node) recordWarning(result secoperr.AddResult, path, key string) {
	if !result.IsWarning() {
		return
	}
	kind := secoperr.CustomProperty
	if result == secoperr.WarningNoDescription {
		kind = secoperr.NoDescription
	}
	n.mu.Lock()
	n.warnings = append(n.warnings, secoperr.WarningEvent{Kind: kind, Path: path, Message: key})
	n.mu.Unlock()
}

// Warnings returns the accumulated non-fatal construction warnings.
func (n *Node) Warnings() []secoperr.WarningEvent {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]secoperr.WarningEvent, len(n.warnings))
	copy(out, n.warnings)
	return out
}

// Modules returns the node's modules in declaration order.
func (n *Node) Modules() []*accessible.Module {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*accessible.Module, len(n.modules))
	copy(out, n.modules)
	return out
}
