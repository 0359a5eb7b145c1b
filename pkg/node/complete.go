package node

import (
	"strings"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/property"
	"github.com/SampleEnvironment/secop-go/pkg/scheduler"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
)

// Complete finalizes node construction: for every module it picks a
// Strategy (InProcess if every accessible has a callback installed,
// Queued otherwise — §9: selected once, never switched afterward) and
// starts its scheduler. onUpdate is invoked on the scheduler goroutine
// after each successful poll; the session layer wires it to fan out
// "update" frames to active sessions.
func (d *Directory) Complete(nodeID string, onUpdate scheduler.OnUpdate) error {
	n := d.Node(nodeID)
	if n == nil {
		return nodeNotFound(nodeID)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.complete {
		return nil
	}
	for _, m := range n.modules {
		n.checkMissingDescription(m.Name, m.Properties)
		for _, a := range m.Accessibles() {
			n.checkMissingDescription(m.Name+":"+a.AccessibleName(), a.PropertyList())
		}

		var strat scheduler.Strategy
		if m.AllCallbacksInstalled() {
			strat = scheduler.InProcess{}
		} else {
			m.ExternalPoll = true
			strat = scheduler.NewQueued()
		}
		sched := scheduler.New(scheduler.ForModule(m), strat, onUpdate)
		n.schedulers[m.Name] = sched
		sched.Start(n.ctx)
		log.Node(n.ID).Info().
			Str("module", m.Name).
			Int("poll_ms", sched.ActualPollMs()).
			Bool("external_poll", m.ExternalPoll).
			Msg("module scheduler started")
	}
	n.complete = true
	return nil
}

// checkMissingDescription records a MissProperties warning for path if its
// property list never received a "description" (not even an auto default),
// per the recommended-property completeness check run at node_complete.
func (n *Node) checkMissingDescription(path string, props *property.List) {
	if props.Get("description") != nil {
		return
	}
	n.warnings = append(n.warnings, secoperr.WarningEvent{
		Kind:    secoperr.MissProperties,
		Path:    n.ID + ":" + path,
		Message: "description",
	})
}

// StrategyFor returns the strategy selected for a module at Complete, or
// nil if the node isn't complete yet or the module doesn't exist.
func (n *Node) StrategyFor(moduleName string) scheduler.Strategy {
	n.mu.RLock()
	defer n.mu.RUnlock()
	sched, ok := n.schedulers[moduleName]
	if !ok {
		return nil
	}
	return sched.Strategy()
}

// IsComplete reports whether Complete has run for this node.
func (n *Node) IsComplete() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.complete
}

// FindAccessible resolves a "<module>:<accessible>" pair, case-insensitive
// on both components, or returns nil.
func FindAccessible(modules []*accessible.Module, moduleName, accessibleName string) accessible.Accessible {
	for _, m := range modules {
		if strings.EqualFold(m.Name, moduleName) {
			return m.Get(accessibleName)
		}
	}
	return nil
}
