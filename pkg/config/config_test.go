package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
nodes:
  - id: HZB
    description: loopback test node
    port: 0
    modules:
      - name: hpd
        description: a heater power driver
        poll_ms: 500
        accessibles:
          - name: target
            kind: parameter
            writable: true
            description: requested setpoint
            unit: K
            datainfo:
              type: double
              min: 0
              max: 1000
            initial: 0
          - name: stop
            kind: command
            description: stop the drive
diag:
  addr: 127.0.0.1:0
  activity_cap: 20
log:
  level: debug
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDecodesNodeTree(t *testing.T) {
	cfg, err := Load(writeSampleConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Nodes) != 1 {
		t.Fatalf("len(cfg.Nodes) = %d, want 1", len(cfg.Nodes))
	}
	n := cfg.Nodes[0]
	if n.ID != "HZB" || n.Port != 0 {
		t.Fatalf("unexpected node: %+v", n)
	}
	if len(n.Modules) != 1 || n.Modules[0].Name != "hpd" {
		t.Fatalf("unexpected modules: %+v", n.Modules)
	}
	mod := n.Modules[0]
	if mod.PollMs != 500 {
		t.Fatalf("PollMs = %d, want 500", mod.PollMs)
	}
	if len(mod.Accessibles) != 2 {
		t.Fatalf("len(mod.Accessibles) = %d, want 2", len(mod.Accessibles))
	}
	target := mod.Accessibles[0]
	if target.Kind != "parameter" || !target.Writable || target.Unit != "K" {
		t.Fatalf("unexpected target accessible: %+v", target)
	}
	if target.Datainfo["type"] != "double" {
		t.Fatalf("unexpected datainfo: %+v", target.Datainfo)
	}
	stop := mod.Accessibles[1]
	if stop.Kind != "command" {
		t.Fatalf("unexpected stop accessible: %+v", stop)
	}

	if cfg.Diag.Addr != "127.0.0.1:0" || cfg.Diag.ActivityCap != 20 {
		t.Fatalf("unexpected diag config: %+v", cfg.Diag)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadAppliesPollIntervalDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	const yaml = `
nodes:
  - id: HZB
    port: 0
    modules:
      - name: hpd
        accessibles:
          - name: target
            kind: parameter
            datainfo:
              type: double
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Nodes[0].Modules[0].PollMs; got != 1000 {
		t.Fatalf("PollMs = %d, want default 1000", got)
	}
	if cfg.Diag.Addr != "" || cfg.Diag.ActivityCap != 50 {
		t.Fatalf("unexpected diag defaults: %+v", cfg.Diag)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want default info", cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
