package session

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/node"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
)

// Worker is one connection's request/response/subscription state machine.
// Request parsing and response emission are strictly serialised by running
// entirely on the connection's own read loop goroutine, which is what
// gives a single session's replies their in-order guarantee (§5a).
type Worker struct {
	id     string
	conn   net.Conn
	hub    *Hub
	n      *node.Node
	active atomic.Bool

	writeMu sync.Mutex
}

// NewWorker wires conn into hub and n; call Run to start its read loop.
func NewWorker(conn net.Conn, n *node.Node, hub *Hub) *Worker {
	w := &Worker{id: uuid.NewString(), conn: conn, hub: hub, n: n}
	hub.register(w)
	return w
}

func (w *Worker) isActive() bool { return w.active.Load() }

// Run reads frames until the connection closes or errors, dispatching each
// to its handler. It cancels this session's hub registration on return.
func (w *Worker) Run() {
	defer w.close()
	r := bufio.NewReader(w.conn)
	lg := log.Session(w.id)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			w.handleLine(line)
		}
		if err != nil {
			if err != io.EOF {
				lg.Debug().Err(err).Msg("session read error")
			}
			return
		}
	}
}

func (w *Worker) close() {
	w.hub.unregister(w)
	_ = w.conn.Close()
}

func (w *Worker) writeLine(line []byte) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_, _ = w.conn.Write(line)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		_, _ = w.conn.Write([]byte("\n"))
	}
}

func (w *Worker) handleLine(line string) {
	f := parseFrame(line)
	action := strings.ToLower(f.action)
	switch action {
	case "*idn?":
		w.writeLine([]byte(banner))
	case "describe":
		w.writeLine(append([]byte("describing . "), w.n.Describe()...))
	case "activate":
		w.handleActivate()
	case "deactivate":
		w.active.Store(false)
		w.writeLine([]byte("inactive"))
	case "read":
		w.handleRead(f)
	case "change":
		w.handleChange(f)
	case "do":
		w.handleDo(f)
	case "ping":
		if f.specifier == "" {
			w.writeLine([]byte("pong"))
		} else {
			w.writeLine([]byte("pong " + f.specifier))
		}
	case "help":
		w.writeLine([]byte("commands " + helpCommands))
	case "":
		// blank line, ignore
	default:
		w.writeLine(errorFrame(line, secoperr.New(secoperr.BadProtocol, "unknown action %q", f.action)))
	}
}

func (w *Worker) handleActivate() {
	for _, m := range w.n.Modules() {
		for _, p := range m.Parameters() {
			value, sigma, hasSigma, ts := p.Cached()
			if value == nil {
				continue
			}
			specifier := m.Name + ":" + p.Name
			payload := valueQualifierPair(value.ExportValue(), ts, sigma, hasSigma)
			w.writeLine([]byte("update " + specifier + " " + string(payload)))
		}
	}
	w.active.Store(true)
	w.writeLine([]byte("active"))
}

func (w *Worker) resolveParameter(specifier string) (module string, p *accessible.Parameter, err error) {
	moduleName, accName, ok := moduleAccessible(specifier)
	if !ok {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "malformed specifier %q", specifier)
	}
	a := node.FindAccessible(w.n.Modules(), moduleName, accName)
	if a == nil {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "%s not found", specifier)
	}
	p, ok2 := a.(*accessible.Parameter)
	if !ok2 {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "%s is not a parameter", specifier)
	}
	return canonicalModule(w.n, moduleName), p, nil
}

func (w *Worker) resolveCommand(specifier string) (module string, c *accessible.Command, err error) {
	moduleName, accName, ok := moduleAccessible(specifier)
	if !ok {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "malformed specifier %q", specifier)
	}
	a := node.FindAccessible(w.n.Modules(), moduleName, accName)
	if a == nil {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "%s not found", specifier)
	}
	c, ok2 := a.(*accessible.Command)
	if !ok2 {
		return "", nil, secoperr.New(secoperr.ItemNotFound, "%s is not a command", specifier)
	}
	return canonicalModule(w.n, moduleName), c, nil
}

func canonicalModule(n *node.Node, moduleName string) string {
	for _, m := range n.Modules() {
		if strings.EqualFold(m.Name, moduleName) {
			return m.Name
		}
	}
	return moduleName
}

func (w *Worker) handleRead(f frame) {
	moduleName, p, err := w.resolveParameter(f.specifier)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	strat := w.n.StrategyFor(moduleName)
	if strat == nil {
		w.writeLine(errorFrame(f.specifier, secoperr.New(secoperr.Internal, "module %q has no scheduler", moduleName)))
		return
	}
	value, sigma, hasSigma, ts, err := strat.Read(p)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	canonical := moduleName + ":" + p.Name
	payload := valueQualifierPair(value.ExportValue(), ts, sigma, hasSigma)
	w.writeLine([]byte("reply " + canonical + " " + string(payload)))
	w.hub.Broadcast([]byte("update "+canonical+" "+string(payload)), w)
}

func (w *Worker) handleChange(f frame) {
	moduleName, p, err := w.resolveParameter(f.specifier)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	strat := w.n.StrategyFor(moduleName)
	if strat == nil {
		w.writeLine(errorFrame(f.specifier, secoperr.New(secoperr.Internal, "module %q has no scheduler", moduleName)))
		return
	}
	value, sigma, hasSigma, ts, err := strat.Change(p, f.data)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	canonical := moduleName + ":" + p.Name
	payload := valueQualifierPair(value.ExportValue(), ts, sigma, hasSigma)
	w.writeLine([]byte("changed " + canonical + " " + string(payload)))
	w.hub.Broadcast([]byte("update "+canonical+" "+string(payload)), w)
}

func (w *Worker) handleDo(f frame) {
	moduleName, c, err := w.resolveCommand(f.specifier)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	strat := w.n.StrategyFor(moduleName)
	if strat == nil {
		w.writeLine(errorFrame(f.specifier, secoperr.New(secoperr.Internal, "module %q has no scheduler", moduleName)))
		return
	}
	res, err := strat.Do(c, f.data)
	if err != nil {
		w.writeLine(errorFrame(f.specifier, err))
		return
	}
	canonical := moduleName + ":" + c.Name
	var resultJSON []byte
	if res != nil {
		resultJSON = res.ExportValue()
	}
	payload := valueQualifierPair(resultJSON, wallClock(), 0, false)
	w.writeLine([]byte("done " + canonical + " " + string(payload)))
}

func wallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
