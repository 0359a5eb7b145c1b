package node

import (
	"fmt"
	"net"
	"sync"

	"github.com/SampleEnvironment/secop-go/pkg/log"
)

// Listener is a node's TCP accept loop. It knows nothing about the wire
// protocol itself: each accepted connection is handed to the caller's
// accept handler, which is the session package's worker constructor. This
// keeps node free of a dependency on session, avoiding an import cycle
// (session depends on node to resolve module:accessible paths).
type Listener struct {
	ln       net.Listener
	wg       sync.WaitGroup
	closeOnce sync.Once
}

// Listen binds n.ListenPort and spawns handle(conn) per accepted
// connection in its own goroutine until the listener is closed.
func (n *Node) Listen(handle func(net.Conn)) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", n.ListenPort))
	if err != nil {
		return nil, err
	}
	l := &Listener{ln: ln}
	n.mu.Lock()
	n.listener = l
	n.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				handle(conn)
			}()
		}
	}()
	log.Node(n.ID).Info().Int("port", n.ListenPort).Msg("listening")
	return l, nil
}

// Addr returns the bound address, useful when ListenPort was 0.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections. In-flight connection handlers are
// not interrupted; they end when their peer disconnects.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		_ = l.ln.Close()
	})
}
