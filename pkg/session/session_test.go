package session

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/node"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

func TestParseFrameThreeFields(t *testing.T) {
	f := parseFrame("change hpd:target 1e6\n")
	if f.action != "change" || f.specifier != "hpd:target" || string(f.data) != "1e6" {
		t.Fatalf("parseFrame() = %+v", f)
	}
}

func TestParseFrameOneField(t *testing.T) {
	f := parseFrame("*IDN?\r\n")
	if f.action != "*IDN?" || f.specifier != "" || f.data != nil {
		t.Fatalf("parseFrame() = %+v", f)
	}
}

func TestParseFrameJSONWithSpaces(t *testing.T) {
	f := parseFrame(`do hpd:move {"x": 1, "y": 2}`)
	if f.specifier != "hpd:move" {
		t.Fatalf("specifier = %q", f.specifier)
	}
	if string(f.data) != `{"x": 1, "y": 2}` {
		t.Fatalf("data = %q", f.data)
	}
}

func newTestNode(t *testing.T) (*node.Directory, *node.Node) {
	t.Helper()
	d := node.Init()
	if _, err := d.CreateNode("HZB", "", 0); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if _, err := d.AddModule("HZB", "hpd"); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if _, err := d.AddWritableParameter("HZB", "hpd", "target",
		func() (*variant.Variant, float64, bool, float64, error) {
			v, _ := variant.NewDouble(-273.15, 1000.0)
			_ = v.ImportValue([]byte("0"), true)
			return v, 0, false, 0, nil
		},
		func(requested *variant.Variant) (*variant.Variant, float64, bool, float64, error) {
			x, _ := requested.GetDouble(0, 0)
			effective, _ := variant.NewDouble(-273.15, 1000.0)
			_ = effective.ImportValue([]byte(jsonFloat(x)), true)
			return effective, 0, false, 0, nil
		},
	); err != nil {
		t.Fatalf("AddWritableParameter: %v", err)
	}
	if _, err := d.AddProperty("HZB", "datainfo", jsonVariant(t, `{"type":"double","min":-273.15,"max":1000.0}`)); err != nil {
		t.Fatalf("AddProperty(datainfo): %v", err)
	}
	if err := d.Complete("HZB", nil); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	return d, d.Node("HZB")
}

func jsonVariant(t *testing.T, raw string) *variant.Variant {
	t.Helper()
	v := variant.NewJSON()
	if err := v.ImportValue([]byte(raw), true); err != nil {
		t.Fatalf("jsonVariant: %v", err)
	}
	return v
}

func jsonFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func newPipeWorker(t *testing.T, n *node.Node, hub *Hub) (*Worker, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	w := NewWorker(serverConn, n, hub)
	go w.Run()
	return w, clientConn
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func TestActivateEmitsSnapshotThenActive(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, client := newPipeWorker(t, n, hub)
	defer client.Close()
	r := bufio.NewReader(client)

	// A prior read populates the cache; activate's snapshot only covers
	// parameters that already have a cached value (nothing has ticked yet).
	_, _ = client.Write([]byte("read hpd:target\n"))
	readLine(t, r)

	_, _ = client.Write([]byte("activate\n"))
	snapshot := readLine(t, r)
	if !strings.HasPrefix(snapshot, "update hpd:target ") {
		t.Fatalf("expected snapshot update, got %q", snapshot)
	}
	active := readLine(t, r)
	if active != "active" {
		t.Fatalf("expected active, got %q", active)
	}
}

func TestReadReply(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, client := newPipeWorker(t, n, hub)
	defer client.Close()

	_, _ = client.Write([]byte("read hpd:target\n"))
	r := bufio.NewReader(client)
	line := readLine(t, r)
	if !strings.HasPrefix(line, "reply hpd:target [0,") {
		t.Fatalf("unexpected reply: %q", line)
	}
}

func TestChangeBroadcastsUpdateToOtherActiveSession(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, clientA := newPipeWorker(t, n, hub)
	defer clientA.Close()
	_, clientB := newPipeWorker(t, n, hub)
	defer clientB.Close()

	rA := bufio.NewReader(clientA)
	rB := bufio.NewReader(clientB)

	_, _ = clientB.Write([]byte("activate\n"))
	active := readLine(t, rB)
	if active != "active" {
		t.Fatalf("expected active (no cached value yet), got %q", active)
	}

	// Change requires a cached value to validate the new value's type
	// against, so prime the cache with a read first.
	_, _ = clientA.Write([]byte("read hpd:target\n"))
	readLine(t, rA)

	_, _ = clientA.Write([]byte("change hpd:target 500\n"))
	changed := readLine(t, rA)
	if !strings.HasPrefix(changed, "changed hpd:target [500") {
		t.Fatalf("unexpected changed: %q", changed)
	}

	done := make(chan string, 1)
	go func() {
		line, err := rB.ReadString('\n')
		if err != nil {
			done <- ""
			return
		}
		done <- strings.TrimRight(line, "\r\n")
	}()
	select {
	case update := <-done:
		if !strings.HasPrefix(update, "update hpd:target [500") {
			t.Fatalf("unexpected update on B: %q", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update on B")
	}
}

func TestReadBroadcastsUpdateToOtherActiveSession(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, clientA := newPipeWorker(t, n, hub)
	defer clientA.Close()
	_, clientB := newPipeWorker(t, n, hub)
	defer clientB.Close()

	rA := bufio.NewReader(clientA)
	rB := bufio.NewReader(clientB)

	_, _ = clientB.Write([]byte("activate\n"))
	active := readLine(t, rB)
	if active != "active" {
		t.Fatalf("expected active (no cached value yet), got %q", active)
	}

	_, _ = clientA.Write([]byte("read hpd:target\n"))
	reply := readLine(t, rA)
	if !strings.HasPrefix(reply, "reply hpd:target [") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	done := make(chan string, 1)
	go func() {
		line, err := rB.ReadString('\n')
		if err != nil {
			done <- ""
			return
		}
		done <- strings.TrimRight(line, "\r\n")
	}()
	select {
	case update := <-done:
		if !strings.HasPrefix(update, "update hpd:target [") {
			t.Fatalf("unexpected update on B: %q", update)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update on B")
	}
}

func TestPingEchoesToken(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, client := newPipeWorker(t, n, hub)
	defer client.Close()

	_, _ = client.Write([]byte("ping abc123\n"))
	r := bufio.NewReader(client)
	line := readLine(t, r)
	if line != "pong abc123" {
		t.Fatalf("got %q, want pong abc123", line)
	}
}

func TestUnknownActionProducesBadProtocolError(t *testing.T) {
	_, n := newTestNode(t)
	hub := NewHub()
	_, client := newPipeWorker(t, n, hub)
	defer client.Close()

	_, _ = client.Write([]byte("frobnicate\n"))
	r := bufio.NewReader(client)
	line := readLine(t, r)
	if !strings.HasPrefix(line, "error BadProtocol ") {
		t.Fatalf("got %q", line)
	}
}
