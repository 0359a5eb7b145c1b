package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
)

// request writes action+specifier(+data) to the wire and blocks until the
// matching expectAction frame for specifier arrives, ctx is done, or the
// session closes. A late reply after a timeout still updates the cache (the
// pending entry is only removed by a matching reply, by Close, or by a
// reconnect), matching test_read's §4.7 contract.
func (s *Session) request(ctx context.Context, action, expectAction, specifier string, data []byte) (incoming, error) {
	key := requestKey{action: expectAction, specifier: strings.ToLower(specifier)}
	ch := make(chan incoming, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return incoming{}, secoperr.New(secoperr.Internal, "session closed")
	}
	s.pending[key] = time.Now()
	s.waiters[key] = append(s.waiters[key], ch)
	s.mu.Unlock()

	line := action + " " + specifier
	if len(data) > 0 {
		line += " " + string(data)
	}
	if err := s.writeLine(line); err != nil {
		s.mu.Lock()
		s.failPendingLocked(key, err)
		s.mu.Unlock()
		return incoming{}, secoperr.Wrap(secoperr.Internal, err, "send %s", action)
	}

	select {
	case resp := <-ch:
		if resp.action == "error" {
			return incoming{}, secoperr.New(secoperr.Internal, "%s", errorReason(resp.data))
		}
		return resp, nil
	case <-ctx.Done():
		return incoming{}, secoperr.New(secoperr.Timeout, "%s %s timed out", action, specifier)
	case <-s.stopCh:
		return incoming{}, secoperr.New(secoperr.Internal, "session closed")
	}
}

// Read issues "read <specifier>" and blocks for the matching "reply".
func (s *Session) Read(ctx context.Context, specifier string) (json.RawMessage, float64, bool, float64, error) {
	resp, err := s.request(ctx, "read", "reply", specifier, nil)
	if err != nil {
		return nil, 0, false, 0, err
	}
	return parseValueQualifier(resp.data)
}

// Change issues "change <specifier> <json>" and blocks for the matching
// "changed".
func (s *Session) Change(ctx context.Context, specifier string, value json.RawMessage) (json.RawMessage, float64, bool, float64, error) {
	resp, err := s.request(ctx, "change", "changed", specifier, value)
	if err != nil {
		return nil, 0, false, 0, err
	}
	return parseValueQualifier(resp.data)
}

// Do issues "do <specifier> [<json>]" and blocks for the matching "done".
func (s *Session) Do(ctx context.Context, specifier string, argument json.RawMessage) (json.RawMessage, error) {
	resp, err := s.request(ctx, "do", "done", specifier, argument)
	if err != nil {
		return nil, err
	}
	value, _, _, _, err := parseValueQualifier(resp.data)
	return value, err
}

// TestRead is the blocking test_read operation from §4.7: it only applies to
// variable (non-constant) parameters, and a timeout leaves the pending entry
// in place so a late reply still updates the cache.
func (s *Session) TestRead(specifier string, timeout time.Duration) (json.RawMessage, float64, bool, float64, error) {
	if !s.IsVariable(specifier) {
		return nil, 0, false, 0, secoperr.New(secoperr.InvalidValue, "%s is not a variable parameter", specifier)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Read(ctx, specifier)
}
