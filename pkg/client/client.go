// Package client implements the outbound client session: connect, describe,
// activate, and track pending request/reply pairs against an upstream node.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/log"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// State is the client session's connection lifecycle per §4.7.
type State int

const (
	Disconnected State = iota
	Describing
	Activating
	Connected
	Reconnecting
	Rejected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Describing:
		return "Describing"
	case Activating:
		return "Activating"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// backoffSchedule is the approximate geometric back-off from §4.7; the last
// step repeats once the schedule is exhausted.
var backoffSchedule = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	30 * time.Second,
}

const maxReconnectTries = 100

func backoffStep(try int) time.Duration {
	if try >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[try]
}

// requestKey identifies a pending request by its expected reply action and
// the specifier it was issued against.
type requestKey struct {
	action    string
	specifier string
}

// cacheEntry is the last-known (value, sigma, timestamp) for one
// module:accessible, mirroring the server's own parameter cache.
type cacheEntry struct {
	value     json.RawMessage
	sigma     float64
	hasSigma  bool
	timestamp float64
}

// accessibleInfo is the client's parsed view of one described accessible.
type accessibleInfo struct {
	name       string
	isCommand  bool
	isConstant bool
	datatype   *variant.Variant
}

type moduleInfo struct {
	name        string
	accessibles map[string]*accessibleInfo
	order       []string
}

// Session is one outbound connection to a SECoP node. Reconnects transparently
// replace the underlying net.Conn; callers keep using the same *Session.
type Session struct {
	addr         string
	autoActivate bool
	onUpdate     func(specifier string, value json.RawMessage, sigma float64, hasSigma bool, ts float64)

	mu          sync.Mutex
	conn        net.Conn
	bufReader   *bufio.Reader
	writeMu     sync.Mutex
	state       State
	modules     map[string]*moduleInfo
	rawDescribe json.RawMessage
	cache       map[string]*cacheEntry
	pending     map[requestKey]time.Time
	waiters     map[requestKey][]chan incoming
	closed      bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Session at Dial time.
type Option func(*Session)

// WithoutAutoActivate disables the automatic "activate" sent after a
// successful describe.
func WithoutAutoActivate() Option {
	return func(s *Session) { s.autoActivate = false }
}

// WithUpdateCallback registers a callback invoked on the read loop's own
// goroutine for every "update"/"changed" frame, after the cache has been
// updated.
func WithUpdateCallback(fn func(specifier string, value json.RawMessage, sigma float64, hasSigma bool, ts float64)) Option {
	return func(s *Session) { s.onUpdate = fn }
}

// Dial connects to addr ("host:port"), performs the describe handshake, and
// (unless disabled) activates the session before returning. On transport
// loss the session reconnects on its own per the §4.7 back-off schedule;
// Dial itself does not retry.
func Dial(ctx context.Context, addr string, opts ...Option) (*Session, error) {
	s := &Session{
		addr:         addr,
		autoActivate: true,
		state:        Disconnected,
		modules:      map[string]*moduleInfo{},
		cache:        map[string]*cacheEntry{},
		pending:      map[requestKey]time.Time{},
		waiters:      map[requestKey][]chan incoming{},
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.connectAndHandshake(ctx); err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

func (s *Session) connectAndHandshake(ctx context.Context) error {
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return secoperr.Wrap(secoperr.Internal, err, "dial %s", s.addr)
	}
	r := bufio.NewReader(conn)

	if _, err := conn.Write([]byte("describe\n")); err != nil {
		_ = conn.Close()
		return secoperr.Wrap(secoperr.Internal, err, "send describe")
	}
	line, err := r.ReadString('\n')
	if err != nil {
		_ = conn.Close()
		return secoperr.Wrap(secoperr.Internal, err, "read describe reply")
	}
	if err := s.handleDescribing(strings.TrimRight(line, "\r\n")); err != nil {
		_ = conn.Close()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.bufReader = r
	s.mu.Unlock()

	if s.autoActivate {
		s.mu.Lock()
		s.state = Activating
		s.mu.Unlock()
		if err := s.writeLine("activate"); err != nil {
			return secoperr.Wrap(secoperr.Internal, err, "send activate")
		}
	} else {
		s.mu.Lock()
		s.state = Connected
		s.mu.Unlock()
	}
	return nil
}

// writeLine serialises one request line onto the current connection.
func (s *Session) writeLine(line string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return secoperr.New(secoperr.Internal, "not connected")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

func (s *Session) handleDescribing(line string) error {
	const prefix = "describing . "
	if !strings.HasPrefix(line, prefix) {
		return secoperr.New(secoperr.BadProtocol, "unexpected describe reply %q", line)
	}
	var doc struct {
		EquipmentID string                     `json:"equipment_id"`
		Modules     map[string]json.RawMessage `json:"modules"`
	}
	if err := json.Unmarshal([]byte(line[len(prefix):]), &doc); err != nil {
		return secoperr.Wrap(secoperr.BadJSON, err, "parse describe reply")
	}
	modules := map[string]*moduleInfo{}
	for modName, raw := range doc.Modules {
		mi, err := parseModule(modName, raw)
		if err != nil {
			return err
		}
		modules[strings.ToLower(modName)] = mi
	}
	s.mu.Lock()
	s.modules = modules
	s.rawDescribe = append(json.RawMessage(nil), line[len(prefix):]...)
	s.state = Describing
	s.mu.Unlock()
	return nil
}

// RawDescribe returns the descriptive JSON document received at describe
// time, for callers that just want to display it (e.g. "secopd client").
func (s *Session) RawDescribe() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawDescribe
}

func parseModule(name string, raw json.RawMessage) (*moduleInfo, error) {
	var doc struct {
		Accessibles map[string]json.RawMessage `json:"accessibles"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, secoperr.Wrap(secoperr.BadJSON, err, "parse module %q", name)
	}
	mi := &moduleInfo{name: name, accessibles: map[string]*accessibleInfo{}}
	for accName, accRaw := range doc.Accessibles {
		ai, err := parseAccessible(accName, accRaw)
		if err != nil {
			return nil, err
		}
		mi.accessibles[strings.ToLower(accName)] = ai
		mi.order = append(mi.order, accName)
	}
	return mi, nil
}

func parseAccessible(name string, raw json.RawMessage) (*accessibleInfo, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, secoperr.Wrap(secoperr.BadJSON, err, "parse accessible %q", name)
	}
	ai := &accessibleInfo{name: name}
	if dt, ok := doc["datainfo"]; ok && string(dt) != "null" {
		typ, err := variant.CreateFromDescriptor(dt)
		if err != nil {
			return nil, secoperr.Wrap(secoperr.InvalidValue, err, "accessible %q: bad datainfo", name)
		}
		ai.datatype = typ
		if t, _ := typeField(dt); t == "command" {
			ai.isCommand = true
		}
	}
	if _, ok := doc["constant"]; ok {
		ai.isConstant = true
	}
	return ai, nil
}

func typeField(raw json.RawMessage) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	err := json.Unmarshal(raw, &head)
	return head.Type, err
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cached returns the last-known value for "<module>:<accessible>", or ok=false
// if nothing has been received for it yet.
func (s *Session) Cached(specifier string) (value json.RawMessage, sigma float64, hasSigma bool, timestamp float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.cache[strings.ToLower(specifier)]
	if !found {
		return nil, 0, false, 0, false
	}
	return e.value, e.sigma, e.hasSigma, e.timestamp, true
}

// IsVariable reports whether specifier names a readable/writable, non-constant
// parameter per test_read's precondition. Commands and unknown specifiers are
// not variable.
func (s *Session) IsVariable(specifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ai := s.lookupLocked(specifier)
	return ai != nil && !ai.isCommand && !ai.isConstant
}

func (s *Session) lookupLocked(specifier string) *accessibleInfo {
	modName, accName, ok := cut(specifier, ':')
	if !ok {
		return nil
	}
	mi, ok := s.modules[strings.ToLower(modName)]
	if !ok {
		return nil
	}
	return mi.accessibles[strings.ToLower(accName)]
}

// Close terminates the session and fails every pending request with
// ConnectionLost; it does not reconnect.
func (s *Session) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Lock()
	s.closed = true
	conn := s.conn
	s.state = Disconnected
	for key := range s.pending {
		s.failPendingLocked(key, secoperr.New(secoperr.Internal, "session closed"))
	}
	s.mu.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Session) failPendingLocked(key requestKey, err error) {
	reason, _ := json.Marshal(err.Error())
	data := `["",{"reason":` + string(reason) + `}]`
	for _, ch := range s.waiters[key] {
		ch <- incoming{action: "error", specifier: key.specifier, data: data}
		close(ch)
	}
	delete(s.waiters, key)
	delete(s.pending, key)
}

// readLoop consumes frames until the connection fails, then reconnects with
// back-off (unless the session was explicitly closed).
func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		r := s.bufReader
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			s.dispatch(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if err != io.EOF {
				log.Logger.Debug().Err(err).Str("addr", s.addr).Msg("client session read error")
			}
			if !s.reconnect() {
				return
			}
		}
	}
}

func (s *Session) dispatch(line string) {
	f := parseIncoming(line)
	switch f.action {
	case "active":
		s.mu.Lock()
		s.state = Connected
		s.mu.Unlock()
		return
	case "inactive", "pong", "commands":
		return
	case "error":
		s.handleError(f)
		return
	}
	value, sigma, hasSigma, ts, err := parseValueQualifier(f.data)
	if err != nil {
		return
	}
	switch f.action {
	case "update", "changed", "reply", "done":
		s.storeAndNotify(f.action, f.specifier, value, sigma, hasSigma, ts)
	}
}

func (s *Session) storeAndNotify(action, specifier string, value json.RawMessage, sigma float64, hasSigma bool, ts float64) {
	key := strings.ToLower(specifier)
	s.mu.Lock()
	s.cache[key] = &cacheEntry{value: value, sigma: sigma, hasSigma: hasSigma, timestamp: ts}
	rk := requestKey{action: action, specifier: key}
	waiters := s.waiters[rk]
	delete(s.waiters, rk)
	delete(s.pending, rk)
	cb := s.onUpdate
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- incoming{action: action, specifier: specifier, data: formatValueQualifier(value, sigma, hasSigma, ts)}
		close(ch)
	}
	if cb != nil {
		cb(specifier, value, sigma, hasSigma, ts)
	}
}

func (s *Session) handleError(f incoming) {
	// An error frame is "error <kind> [<echoed-request>,{"reason":...}]": the
	// token in f.specifier is the error kind, and the echoed request sits as
	// the first element of f.data's array, not a "<module>:<accessible>"
	// specifier — so the pending key it clears is found by scanning for a
	// match against that echoed text.
	var pair []json.RawMessage
	if err := json.Unmarshal([]byte(f.data), &pair); err != nil || len(pair) != 2 {
		return
	}
	var echoed string
	_ = json.Unmarshal(pair[0], &echoed)
	reason := errorReason(f.data)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, waiters := range s.waiters {
		if echoed != key.specifier && !strings.Contains(echoed, key.specifier) {
			continue
		}
		for _, ch := range waiters {
			ch <- incoming{action: "error", specifier: key.specifier, data: reason}
			close(ch)
		}
		delete(s.waiters, key)
		delete(s.pending, key)
	}
}

// reconnect retries the describe/activate handshake with the §4.7 back-off
// schedule. It returns false once the session is Rejected or closed.
func (s *Session) reconnect() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.state = Reconnecting
	for key := range s.pending {
		s.failPendingLocked(key, secoperr.New(secoperr.Internal, "connection lost"))
	}
	s.mu.Unlock()

	for try := 0; try < maxReconnectTries; try++ {
		select {
		case <-s.stopCh:
			return false
		case <-time.After(backoffStep(try)):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.connectAndHandshake(ctx)
		cancel()
		if err == nil {
			return true
		}
		log.Logger.Debug().Err(err).Str("addr", s.addr).Int("try", try).Msg("client reconnect attempt failed")
	}
	s.mu.Lock()
	s.state = Rejected
	s.mu.Unlock()
	return false
}
