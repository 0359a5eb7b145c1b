// Package scheduler implements the per-module polling loop: compute
// actualPollMs from the module-wide and per-parameter intervals, tick at
// that period, and fan out updates to subscribers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/log"
)

// Target is the module-shaped surface the scheduler ticks. *accessible.Module
// satisfies it directly; scheduler never imports pkg/node, which keeps
// node -> {accessible, scheduler} one-directional.
type Target interface {
	AccessibleName() string
	WantedPollMs() int
	Parameters() []*accessible.Parameter
}

// moduleTarget adapts *accessible.Module (whose identifying method is Name,
// not AccessibleName) to Target.
type moduleTarget struct{ *accessible.Module }

func (m moduleTarget) AccessibleName() string { return m.Name }

// ForModule wraps a *accessible.Module as a scheduler Target.
func ForModule(m *accessible.Module) Target { return moduleTarget{m} }

// OnUpdate is invoked on the scheduler's own goroutine after each
// successful poll, with the parameter whose cache was just refreshed;
// callers read the new value/sigma/timestamp off it directly.
type OnUpdate func(p *accessible.Parameter)

// Scheduler runs one module's poll loop: a ticker of period actualPollMs
// that accumulates per-parameter intervals and fires reads through a
// pluggable Strategy, structurally the teacher's runPoller/forcePoll pair.
type Scheduler struct {
	target   Target
	strategy Strategy
	onUpdate OnUpdate

	actualPollMs int
	accumMu      sync.Mutex
	accum        map[*accessible.Parameter]int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New computes actualPollMs from target and builds a Scheduler. strategy
// selects in-process vs external-poll read/change/do dispatch; it is fixed
// for the scheduler's lifetime (§9: selected once at node_complete).
func New(target Target, strategy Strategy, onUpdate OnUpdate) *Scheduler {
	return &Scheduler{
		target:       target,
		strategy:     strategy,
		onUpdate:     onUpdate,
		actualPollMs: computeActualPollMs(target),
		accum:        map[*accessible.Parameter]int{},
		stopCh:       make(chan struct{}),
	}
}

// ActualPollMs returns the computed tick period in milliseconds.
func (s *Scheduler) ActualPollMs() int { return s.actualPollMs }

// Strategy returns the dispatch strategy fixed at New.
func (s *Scheduler) Strategy() Strategy { return s.strategy }

func computeActualPollMs(target Target) int {
	best := target.WantedPollMs()
	for _, p := range target.Parameters() {
		if iv := p.PollIntervalMs(); iv > 0 && (best <= 0 || iv < best) {
			best = iv
		}
	}
	if best < 10 {
		best = 10
	}
	if best > 3600000 {
		best = 3600000
	}
	return best
}

// Start launches the tick goroutine. Cancelling ctx or calling Stop ends it;
// Stop additionally waits for any in-flight tick to finish before returning
// (module shutdown drains in-flight callbacks per §4.4).
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the tick goroutine to exit and waits for it to drain.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.actualPollMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick accumulates every parameter's interval, polls the ones due, and fans
// out an update for each that succeeded.
func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Module(s.target.AccessibleName()).Error().Interface("panic", r).Msg("scheduler tick recovered")
		}
	}()
	due := s.dueParameters()
	for _, p := range due {
		if _, _, _, _, err := s.strategy.Read(p); err != nil {
			log.Module(s.target.AccessibleName()).Warn().Err(err).Str("parameter", p.Name).Msg("poll failed")
			continue
		}
		if s.onUpdate != nil {
			s.onUpdate(p)
		}
	}
}

func (s *Scheduler) dueParameters() []*accessible.Parameter {
	s.accumMu.Lock()
	defer s.accumMu.Unlock()
	var due []*accessible.Parameter
	for _, p := range s.target.Parameters() {
		interval := p.PollIntervalMs()
		if interval == 0 {
			due = append(due, p)
			continue
		}
		s.accum[p] += s.actualPollMs
		if s.accum[p] >= interval {
			s.accum[p] = 0
			due = append(due, p)
		}
	}
	return due
}
