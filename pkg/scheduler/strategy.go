package scheduler

import (
	"sync"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
	"github.com/SampleEnvironment/secop-go/pkg/variant"
)

// Strategy dispatches read/change/do either in-process (normal callback
// mode) or through a process-wide work queue (external-poll mode, §4.4/§6).
// It is chosen once per module at node_complete and never switched
// thereafter (§9 design note).
type Strategy interface {
	Read(p *accessible.Parameter) (value *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error)
	Change(p *accessible.Parameter, requested []byte) (value *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error)
	Do(c *accessible.Command, argJSON []byte) (result *variant.Variant, err error)
}

// InProcess dispatches straight through accessible.Read/Change/Do, for
// modules whose parameters carry real getter/setter callbacks.
type InProcess struct{}

func (InProcess) Read(p *accessible.Parameter) (*variant.Variant, float64, bool, float64, error) {
	return accessible.Read(p)
}

func (InProcess) Change(p *accessible.Parameter, requested []byte) (*variant.Variant, float64, bool, float64, error) {
	return accessible.Change(p, requested)
}

func (InProcess) Do(c *accessible.Command, argJSON []byte) (*variant.Variant, error) {
	return accessible.Do(c, argJSON)
}

// WorkKind names the operation a queued WorkItem represents.
type WorkKind int

const (
	WorkRead WorkKind = iota
	WorkChange
	WorkDo
)

// WorkItem is one pending external-poll-mode request, surfaced to the
// driver via Queued.GetStoredCommand and resolved via Queued.PutCommandAnswer.
type WorkItem struct {
	Kind      WorkKind
	Parameter *accessible.Parameter
	Command   *accessible.Command
	ArgJSON   []byte
	done      chan workResult
}

type workResult struct {
	value     *variant.Variant
	sigma     float64
	hasSigma  bool
	timestamp float64
	err       error
}

// Queued implements Strategy by handing work items to an external driver
// (§6 get_stored_command/put_command_answer) instead of invoking callbacks
// in-process. Read/Change/Do block until PutCommandAnswer resolves the item.
type Queued struct {
	mu    sync.Mutex
	queue []*WorkItem
}

// NewQueued returns an empty external-poll work queue.
func NewQueued() *Queued { return &Queued{} }

func (q *Queued) enqueue(item *WorkItem) *WorkItem {
	item.done = make(chan workResult, 1)
	q.mu.Lock()
	q.queue = append(q.queue, item)
	q.mu.Unlock()
	return item
}

// GetStoredCommand pops the oldest pending work item, or reports false if
// the queue is empty.
func (q *Queued) GetStoredCommand() (*WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return nil, false
	}
	item := q.queue[0]
	q.queue = q.queue[1:]
	return item, true
}

// PutCommandAnswer resolves a work item previously returned by
// GetStoredCommand, unblocking its Read/Change/Do caller.
func (q *Queued) PutCommandAnswer(item *WorkItem, value *variant.Variant, sigma float64, hasSigma bool, timestamp float64, err error) {
	item.done <- workResult{value: value, sigma: sigma, hasSigma: hasSigma, timestamp: timestamp, err: err}
}

func (q *Queued) Read(p *accessible.Parameter) (*variant.Variant, float64, bool, float64, error) {
	item := q.enqueue(&WorkItem{Kind: WorkRead, Parameter: p})
	r := <-item.done
	return r.value, r.sigma, r.hasSigma, r.timestamp, r.err
}

func (q *Queued) Change(p *accessible.Parameter, requested []byte) (*variant.Variant, float64, bool, float64, error) {
	item := q.enqueue(&WorkItem{Kind: WorkChange, Parameter: p, ArgJSON: requested})
	r := <-item.done
	return r.value, r.sigma, r.hasSigma, r.timestamp, r.err
}

func (q *Queued) Do(c *accessible.Command, argJSON []byte) (*variant.Variant, error) {
	item := q.enqueue(&WorkItem{Kind: WorkDo, Command: c, ArgJSON: argJSON})
	r := <-item.done
	if r.err != nil {
		return nil, r.err
	}
	if r.value == nil {
		return nil, secoperr.New(secoperr.Internal, "queued command %q answered without a result", c.Name)
	}
	return r.value, nil
}
