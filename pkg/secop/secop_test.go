package secop

import (
	"context"
	"testing"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/client"
	"github.com/SampleEnvironment/secop-go/pkg/config"
)

func sampleConfig() *config.Config {
	return &config.Config{
		Nodes: []config.NodeConfig{
			{
				ID:          "HZB",
				Description: "loopback test node",
				Port:        0,
				Modules: []config.ModuleConfig{
					{
						Name:   "hpd",
						PollMs: 100,
						Accessibles: []config.AccessibleConfig{
							{
								Name:     "target",
								Kind:     "parameter",
								Writable: true,
								Datainfo: map[string]any{"type": "double", "min": 0, "max": 1000},
								Initial:  0,
								Unit:     "K",
							},
							{
								Name: "stop",
								Kind: "command",
							},
						},
					},
				},
			},
		},
	}
}

func TestLibraryDescribeWithoutServing(t *testing.T) {
	lib := New()
	ids, err := lib.LoadConfig(sampleConfig())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(ids) != 1 || ids[0] != "HZB" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	doc, err := lib.Describe("HZB")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if len(doc) == 0 {
		t.Fatalf("expected non-empty descriptive JSON")
	}
}

func TestLibraryServeNodeAndRoundTrip(t *testing.T) {
	lib := New()
	if _, err := lib.LoadConfig(sampleConfig()); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	addr, err := lib.ServeNode("HZB")
	if err != nil {
		t.Fatalf("ServeNode: %v", err)
	}
	defer lib.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cl, err := client.Dial(ctx, addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cl.Close()

	deadline := time.Now().Add(time.Second)
	for cl.State() != client.Connected && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cl.State() != client.Connected {
		t.Fatalf("session never reached Connected, state=%v", cl.State())
	}

	readCtx, readCancel := context.WithTimeout(context.Background(), time.Second)
	defer readCancel()
	value, _, _, _, err := cl.Read(readCtx, "hpd:target")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(value) != "0" {
		t.Fatalf("value = %s, want 0", value)
	}

	changeCtx, changeCancel := context.WithTimeout(context.Background(), time.Second)
	defer changeCancel()
	value, _, _, _, err = cl.Change(changeCtx, "hpd:target", []byte("500"))
	if err != nil {
		t.Fatalf("Change: %v", err)
	}
	if string(value) != "500" {
		t.Fatalf("value = %s, want 500", value)
	}

	doCtx, doCancel := context.WithTimeout(context.Background(), time.Second)
	defer doCancel()
	if _, err := cl.Do(doCtx, "hpd:stop", nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestLibraryDescribeUnknownNode(t *testing.T) {
	lib := New()
	if _, err := lib.Describe("missing"); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}
