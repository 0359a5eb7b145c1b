package scheduler

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// fakeTarget is a minimal Target for exercising computeActualPollMs and the
// tick loop without a full accessible.Module.
type fakeTarget struct {
	name     string
	wantedMs int
	params   []*accessible.Parameter
}

func (f *fakeTarget) AccessibleName() string             { return f.name }
func (f *fakeTarget) WantedPollMs() int                   { return f.wantedMs }
func (f *fakeTarget) Parameters() []*accessible.Parameter { return f.params }

func newCountingParameter(t *testing.T, name string, pollIntervalMs int) (*accessible.Parameter, *int32) {
	t.Helper()
	var calls int32
	p, err := accessible.NewParameter(name, false, func() (*variant.Variant, float64, bool, float64, error) {
		calls++
		return variant.NewBool(true), 0, false, 0, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewParameter: %v", err)
	}
	if pollIntervalMs > 0 {
		d, _ := variant.NewDouble(0, 3600)
		if err := d.ImportValue([]byte(intervalSeconds(pollIntervalMs)), true); err != nil {
			t.Fatalf("ImportValue pollinterval: %v", err)
		}
		if _, err := p.Properties.Add("pollinterval", d, false); err != nil {
			t.Fatalf("Add(pollinterval): %v", err)
		}
	}
	return p, &calls
}

func intervalSeconds(ms int) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', -1, 64)
}

func TestComputeActualPollMsUsesFastestParameter(t *testing.T) {
	fast, _ := newCountingParameter(t, "fast", 50)
	slow, _ := newCountingParameter(t, "slow", 2000)
	target := &fakeTarget{name: "mod", wantedMs: 10000, params: []*accessible.Parameter{fast, slow}}
	if got := computeActualPollMs(target); got != 50 {
		t.Fatalf("computeActualPollMs = %d, want 50", got)
	}
}

func TestComputeActualPollMsUnsetWantedUsesFastestParameter(t *testing.T) {
	a, _ := newCountingParameter(t, "a", 100)
	b, _ := newCountingParameter(t, "b", 250)
	target := &fakeTarget{name: "mod", wantedMs: 0, params: []*accessible.Parameter{a, b}}
	if got := computeActualPollMs(target); got != 100 {
		t.Fatalf("computeActualPollMs = %d, want 100 (fastest parameter, no floor clamp)", got)
	}
}

func TestComputeActualPollMsFloor(t *testing.T) {
	target := &fakeTarget{name: "mod", wantedMs: 1}
	if got := computeActualPollMs(target); got != 10 {
		t.Fatalf("computeActualPollMs = %d, want floor 10", got)
	}
}

func TestComputeActualPollMsCeiling(t *testing.T) {
	target := &fakeTarget{name: "mod", wantedMs: 10_000_000}
	if got := computeActualPollMs(target); got != 3600000 {
		t.Fatalf("computeActualPollMs = %d, want ceiling 3600000", got)
	}
}

func TestSchedulerTicksDueParametersAndFansOutUpdates(t *testing.T) {
	p, calls := newCountingParameter(t, "value", 0)
	target := &fakeTarget{name: "mod", wantedMs: 10, params: []*accessible.Parameter{p}}

	var mu sync.Mutex
	var updates []string
	s := New(target, InProcess{}, func(updated *accessible.Parameter) {
		mu.Lock()
		updates = append(updates, updated.Name)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	s.Stop()

	if *calls == 0 {
		t.Fatalf("expected at least one poll, got 0")
	}
	mu.Lock()
	n := len(updates)
	mu.Unlock()
	if n == 0 {
		t.Fatalf("expected at least one onUpdate callback")
	}
}

func TestSchedulerSkipsSlowParameterUntilAccumulated(t *testing.T) {
	fast, fastCalls := newCountingParameter(t, "fast", 0)
	slow, slowCalls := newCountingParameter(t, "slow", 500)
	target := &fakeTarget{name: "mod", wantedMs: 10, params: []*accessible.Parameter{fast, slow}}

	s := New(target, InProcess{}, nil)
	if s.ActualPollMs() != 10 {
		t.Fatalf("ActualPollMs() = %d, want 10", s.ActualPollMs())
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(45 * time.Millisecond)
	cancel()
	s.Stop()

	if *fastCalls == 0 {
		t.Fatalf("expected fast parameter to be polled")
	}
	if *slowCalls != 0 {
		t.Fatalf("expected slow parameter (500ms interval) not yet due, got %d calls", *slowCalls)
	}
}

func TestQueuedStrategyRoundTrips(t *testing.T) {
	q := NewQueued()
	p, _ := newCountingParameter(t, "value", 0)

	go func() {
		item, ok := q.GetStoredCommand()
		for !ok {
			time.Sleep(time.Millisecond)
			item, ok = q.GetStoredCommand()
		}
		v := variant.NewBool(true)
		q.PutCommandAnswer(item, v, 0, false, 123, nil)
	}()

	v, _, _, ts, err := q.Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ts != 123 {
		t.Fatalf("timestamp = %v, want 123", ts)
	}
	b, err := v.GetBool(0, 0)
	if err != nil || !b {
		t.Fatalf("GetBool() = %v, %v, want true, nil", b, err)
	}
}

func TestForModuleAdaptsModuleToTarget(t *testing.T) {
	m, err := accessible.NewModule("hpd")
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	target := ForModule(m)
	if target.AccessibleName() != "hpd" {
		t.Fatalf("AccessibleName() = %q, want hpd", target.AccessibleName())
	}
	if target.WantedPollMs() != 10000 {
		t.Fatalf("WantedPollMs() = %d, want default 10000", target.WantedPollMs())
	}
}
