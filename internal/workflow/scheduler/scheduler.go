package scheduler

import (
	"fmt"

	"github.com/conciergehq/concierge/internal/workflow/resolver"
)

// Request describes one scheduling decision: which modules the caller cares
// about, how many it can absorb, and what is already running.
type Request struct {
	// Targets narrows scheduling to a subset of pipeline nodes. Empty means
	// every incomplete module.
	Targets []string
	// Limit caps the number of nodes returned in one batch. Zero or negative
	// means no limit beyond slot capacity.
	Limit int
	// Slots is the total concurrency budget shared by running and newly
	// dispatched modules. Zero or negative disables the budget.
	Slots int
	// Running lists instance IDs that are currently executing.
	Running []string
}

// Batch is the scheduler's answer: the nodes to dispatch now, and why every
// other candidate was held back.
type Batch struct {
	Nodes   []*resolver.Node
	Skipped map[string]Skip
}

// Skip records why a candidate node was not dispatched.
type Skip struct {
	Code   SkipCode
	Detail string
}

// SkipCode enumerates hold-back reasons.
type SkipCode string

const (
	SkipNotReady  SkipCode = "not-ready"
	SkipRunning   SkipCode = "already-running"
	SkipCapacity  SkipCode = "capacity"
	SkipExclusive SkipCode = "exclusive"
)

// Selector is the contract the engine programs against.
type Selector interface {
	Plan(Request) (Batch, error)
}

// Scheduler selects dispatchable module batches from a resolver snapshot.
// Each module's concurrency profile is honored: slot costs count against the
// budget, and an exclusive module (plan execution owns the browser session)
// never shares the engine with anything else.
type Scheduler struct {
	res *resolver.Resolver
}

// New wires a scheduler to a refreshed resolver.
func New(res *resolver.Resolver) (*Scheduler, error) {
	if res == nil {
		return nil, fmt.Errorf("workflow: scheduler requires a resolver")
	}
	return &Scheduler{res: res}, nil
}

// Plan walks the dependency-ordered queue and picks every node that can start
// right now under the request's constraints.
func (s *Scheduler) Plan(req Request) (Batch, error) {
	queue, err := s.res.Queue(req.Targets...)
	if err != nil {
		return Batch{}, err
	}
	batch := Batch{}
	running := map[string]struct{}{}
	usedSlots := 0
	holdExclusive := false
	for _, id := range req.Running {
		if id == "" {
			continue
		}
		running[id] = struct{}{}
		if node, ok := s.res.Node(id); ok {
			info := node.Module.Info()
			usedSlots += info.SlotCost()
			if info.RequiresExclusiveExecution() {
				holdExclusive = true
			}
		} else {
			// An unknown running id still occupies one slot.
			usedSlots++
		}
	}

	for _, node := range queue {
		if _, active := running[node.ID]; active {
			batch.hold(node.ID, SkipRunning, "module already running")
			continue
		}
		if node.State != resolver.NodeStateReady {
			batch.hold(node.ID, SkipNotReady, string(node.State))
			continue
		}
		if holdExclusive {
			batch.hold(node.ID, SkipExclusive, "an exclusive module holds the engine")
			continue
		}
		info := node.Module.Info()
		if info.RequiresExclusiveExecution() && (usedSlots > 0 || len(batch.Nodes) > 0) {
			batch.hold(node.ID, SkipExclusive, fmt.Sprintf("%s must run alone", node.ID))
			continue
		}
		cost := info.SlotCost()
		if req.Slots > 0 && usedSlots+cost > req.Slots {
			batch.hold(node.ID, SkipCapacity, fmt.Sprintf("slot budget %d exhausted", req.Slots))
			continue
		}
		batch.Nodes = append(batch.Nodes, node)
		usedSlots += cost
		if info.RequiresExclusiveExecution() {
			holdExclusive = true
		}
		if req.Limit > 0 && len(batch.Nodes) >= req.Limit {
			break
		}
	}
	return batch, nil
}

func (b *Batch) hold(id string, code SkipCode, detail string) {
	if id == "" {
		return
	}
	if b.Skipped == nil {
		b.Skipped = map[string]Skip{}
	}
	b.Skipped[id] = Skip{Code: code, Detail: detail}
}
