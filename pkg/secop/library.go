// Package secop is the public façade: a Library handle composing the node
// directory, session wire protocol, and diagnostics server into the
// language-neutral operations a host application needs (create a node,
// serve it over TCP, inspect it, shut it down), per the explicit-handle
// design note preferred over a hidden package-level singleton.
package secop

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/config"
	"github.com/SampleEnvironment/secop-go/pkg/diag"
	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/node"
	"github.com/SampleEnvironment/secop-go/pkg/session"
)

// Library owns one node Directory plus the listeners and diagnostics
// server started against it. The zero value is not usable; construct with
// New.
type Library struct {
	dir  *node.Directory
	hub  *session.Hub
	diag *diag.Server

	mu        sync.Mutex
	listeners map[string]*node.Listener
}

// New returns a Library over a fresh, empty node Directory.
func New() *Library {
	return &Library{
		dir:       node.Init(),
		hub:       session.NewHub(),
		listeners: map[string]*node.Listener{},
	}
}

var defaultLibrary = New()

// Default returns the process-wide convenience Library (§9: a thin wrapper
// over an explicit handle, not a hidden singleton — callers needing more
// than one independent library should use New directly).
func Default() *Library { return defaultLibrary }

// Directory returns the underlying node directory, for callers that need
// the lower-level builder API directly (real hardware getters/setters).
func (l *Library) Directory() *node.Directory { return l.dir }

// EnableDiagnostics starts the read-only HTTP introspection server on addr
// in the background. It must be called before ServeNode for that node's
// updates to be recorded into the activity log.
func (l *Library) EnableDiagnostics(ctx context.Context, addr string, activityCap int) error {
	l.mu.Lock()
	if l.diag != nil {
		l.mu.Unlock()
		return fmt.Errorf("secop: diagnostics already enabled")
	}
	l.diag = diag.New(l.dir, activityCap)
	l.mu.Unlock()

	go func() {
		if err := l.diag.Run(ctx, addr); err != nil {
			log.Logger.Error().Err(err).Str("addr", addr).Msg("diagnostics server stopped")
		}
	}()
	return nil
}

// LoadConfig builds every node declared in cfg (without starting a
// listener) and returns their ids, leaving them ready for ServeNode or
// Describe.
func (l *Library) LoadConfig(cfg *config.Config) ([]string, error) {
	ids := make([]string, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		if _, err := BuildNode(l.dir, nc); err != nil {
			return nil, fmt.Errorf("secop: build node %q: %w", nc.ID, err)
		}
		ids = append(ids, nc.ID)
	}
	return ids, nil
}

// Describe returns nodeID's descriptive JSON without requiring it to be
// served, completing it first if needed (node_complete has no externally
// visible effect beyond selecting a poll strategy and starting schedulers).
func (l *Library) Describe(nodeID string) ([]byte, error) {
	n := l.dir.Node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("secop: node %q not found", nodeID)
	}
	if !n.IsComplete() {
		if err := l.dir.Complete(nodeID, nil); err != nil {
			return nil, err
		}
	}
	return n.Describe(), nil
}

// ServeNode completes nodeID (wiring its scheduler's update callback to
// this library's active-session hub and diagnostics activity log) and
// starts its TCP listener. Safe to call once per node.
func (l *Library) ServeNode(nodeID string) (net.Addr, error) {
	n := l.dir.Node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("secop: node %q not found", nodeID)
	}
	if !n.IsComplete() {
		if err := l.dir.Complete(nodeID, l.onUpdate(nodeID, n)); err != nil {
			return nil, err
		}
	}
	ln, err := n.Listen(func(conn net.Conn) {
		session.NewWorker(conn, n, l.hub).Run()
	})
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.listeners[nodeID] = ln
	l.mu.Unlock()
	return ln.Addr(), nil
}

// onUpdate builds the scheduler callback for nodeID: it fans the new value
// out to every active session on this node's hub (the same "update" frame
// a poll-driven refresh produces per §4.6) and records it into the
// diagnostics activity log, if enabled.
func (l *Library) onUpdate(nodeID string, n *node.Node) func(p *accessible.Parameter) {
	return func(p *accessible.Parameter) {
		moduleName := moduleNameOf(n, p)
		if moduleName == "" {
			return
		}
		specifier := moduleName + ":" + p.Name
		value, sigma, hasSigma, ts := p.Cached()
		if value == nil {
			return
		}
		payload := session.FormatUpdate(specifier, value.ExportValue(), ts, sigma, hasSigma)
		l.hub.Broadcast(payload, nil)

		l.mu.Lock()
		d := l.diag
		l.mu.Unlock()
		if d != nil {
			d.RecordUpdate(nodeID, specifier, value.ExportValue(), wallClockTime(ts))
		}
	}
}

// wallClockTime converts a SECoP qualifier timestamp (unix seconds, 0 when
// absent) into a time.Time, substituting the current time when absent so
// the activity log always has a usable ordering key.
func wallClockTime(ts float64) time.Time {
	if ts == 0 {
		return time.Now()
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func moduleNameOf(n *node.Node, p *accessible.Parameter) string {
	for _, m := range n.Modules() {
		for _, candidate := range m.Parameters() {
			if candidate == p {
				return m.Name
			}
		}
	}
	return ""
}

// Shutdown closes every listener this library opened. It does not tear
// down node directory state; DestroyNode does that per node.
func (l *Library) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ln := range l.listeners {
		ln.Close()
		delete(l.listeners, id)
	}
}
