package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conciergehq/concierge/internal/artifact"
	"github.com/conciergehq/concierge/internal/module"
	"github.com/conciergehq/concierge/internal/workflow"
)

// NodeState is the resolver's verdict on a single pipeline node.
type NodeState string

const (
	NodeStateUnknown  NodeState = "unknown"
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateComplete NodeState = "complete"
	NodeStateError    NodeState = "error"
)

// Node pairs a pipeline module instance with its dependency links and the
// latest readiness verdict.
type Node struct {
	ID           string
	Ref          workflow.ModuleRef
	Module       module.Module
	Dependencies []string
	Dependents   []string

	State     NodeState
	BlockedBy []string
	Err       error

	// Artifacts holds the audit result for each declared output, keyed by
	// artifact ID. Populated during Refresh.
	Artifacts map[string]ArtifactReport

	fingerprints map[string]string
}

// ArtifactReport is the audit verdict for one output artifact.
type ArtifactReport struct {
	Ref                 artifact.ArtifactRef
	Status              module.ArtifactStatus
	Metadata            *artifact.Metadata
	Err                 error
	StoredFingerprint   string
	ExpectedFingerprint string
}

func (r ArtifactReport) usable() bool {
	return r.Status == module.ArtifactStatusFresh || r.Status == module.ArtifactStatusReady
}

// Resolver evaluates which pipeline modules can run, based on module
// completion checks, on-disk artifact audits, and the dependency graph.
type Resolver struct {
	definition workflow.PipelineDefinition
	nodes      map[string]*Node
	order      []string
}

// New instantiates every module in the definition through the registry and
// links the dependency graph. The returned resolver has not been refreshed.
func New(def workflow.PipelineDefinition, registry *module.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("resolver: module registry is required")
	}
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		definition: normalized,
		nodes:      make(map[string]*Node, len(normalized.Modules)),
		order:      make([]string, 0, len(normalized.Modules)),
	}
	for _, ref := range normalized.Modules {
		id := ref.InstanceID()
		mod, err := registry.Resolve(ref.ModuleID, moduleConfig(ref.Config))
		if err != nil {
			return nil, fmt.Errorf("resolver: workflow %s module %s: %w", normalized.ID, id, err)
		}
		r.nodes[id] = &Node{
			ID:           id,
			Ref:          ref,
			Module:       mod,
			Dependencies: normalized.Dependencies(id),
		}
		r.order = append(r.order, id)
	}
	if err := r.linkDependents(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) linkDependents() error {
	for _, node := range r.nodes {
		for _, depID := range node.Dependencies {
			dep, ok := r.nodes[depID]
			if !ok {
				return fmt.Errorf("resolver: workflow %s: %s depends on undeclared module %s", r.definition.ID, node.ID, depID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range r.nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	return nil
}

// Definition returns a clone of the normalized pipeline definition.
func (r *Resolver) Definition() workflow.PipelineDefinition {
	return r.definition.Clone()
}

// Nodes returns every node in declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.nodes[id])
	}
	return out
}

// Node looks up a node by pipeline instance ID.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Refresh re-evaluates the whole graph against the workspace: each module's
// own completion check first, then an audit of its output artifacts, then
// dependency readiness. Call it before asking the scheduler for work.
func (r *Resolver) Refresh(ctx *module.ModuleContext) error {
	if ctx == nil {
		return fmt.Errorf("resolver: module context is required")
	}
	for _, id := range r.order {
		r.refreshNode(ctx, r.nodes[id])
	}
	for _, id := range r.order {
		node := r.nodes[id]
		if node.State == NodeStateError {
			continue
		}
		r.auditOutputs(ctx, node)
		if node.State == NodeStateComplete && !node.outputsUsable() {
			// A stale or foreign artifact demotes the module back to pending
			// so it reruns and reclaims its output.
			node.State = NodeStatePending
		}
	}
	for _, id := range r.order {
		r.settleReadiness(r.nodes[id])
	}
	return nil
}

func (r *Resolver) refreshNode(ctx *module.ModuleContext, node *Node) {
	node.State = NodeStateUnknown
	node.BlockedBy = nil
	node.Err = nil
	node.Artifacts = nil
	node.fingerprints = nil

	if provider, ok := node.Module.(module.Fingerprinter); ok {
		fingerprints, err := provider.ArtifactFingerprints(ctx)
		if err != nil {
			node.State = NodeStateError
			node.Err = fmt.Errorf("resolver: fingerprints for %s: %w", node.ID, err)
			return
		}
		node.fingerprints = fingerprints
	}

	complete, err := node.Module.IsComplete(ctx)
	switch {
	case err != nil:
		node.State = NodeStateError
		node.Err = err
	case complete:
		node.State = NodeStateComplete
	default:
		node.State = NodeStatePending
	}
}

func (r *Resolver) settleReadiness(node *Node) {
	if node.State == NodeStateComplete || node.State == NodeStateError {
		return
	}
	var unmet []string
	for _, depID := range node.Dependencies {
		dep, ok := r.nodes[depID]
		if !ok || dep.State != NodeStateComplete {
			unmet = append(unmet, depID)
		}
	}
	if len(unmet) == 0 {
		node.State = NodeStateReady
		return
	}
	node.State = NodeStateBlocked
	node.BlockedBy = unmet
}

// Ready returns the nodes whose dependencies are all satisfied.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.order {
		if node := r.nodes[id]; node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue lists the incomplete modules needed to satisfy the targets, with
// every dependency ahead of the modules that require it. No targets means
// the whole pipeline.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = r.order
	}
	seen := make(map[string]bool, len(r.nodes))
	var queue []*Node
	var walk func(string) error
	walk = func(id string) error {
		if seen[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("resolver: unknown module %s", id)
		}
		seen[id] = true
		for _, dep := range node.Dependencies {
			if err := walk(dep); err != nil {
				return err
			}
		}
		if node.State != NodeStateComplete {
			queue = append(queue, node)
		}
		return nil
	}
	for _, id := range targets {
		if err := walk(id); err != nil {
			return nil, err
		}
	}
	return queue, nil
}

func (n *Node) outputsUsable() bool {
	for _, report := range n.Artifacts {
		if !report.usable() {
			return false
		}
	}
	return true
}

func (r *Resolver) auditOutputs(ctx *module.ModuleContext, node *Node) {
	outputs := node.Module.Outputs()
	if len(outputs) == 0 {
		return
	}
	node.Artifacts = make(map[string]ArtifactReport, len(outputs))
	for _, ref := range outputs {
		node.Artifacts[ref.ID] = r.auditArtifact(ctx, node, ref)
	}
}

// auditArtifact classifies one output artifact. Artifacts stamped by a
// different module or version are invalidated so the owning module reruns.
func (r *Resolver) auditArtifact(ctx *module.ModuleContext, node *Node, ref artifact.ArtifactRef) ArtifactReport {
	report := ArtifactReport{Ref: ref, Status: module.ArtifactStatusUnknown}
	if ctx == nil || ctx.Artifacts == nil {
		report.Status = module.ArtifactStatusError
		report.Err = fmt.Errorf("resolver: artifact store is unavailable")
		r.notifyInvalidation(ctx, node, report, module.InvalidationReasonCheckError)
		return report
	}
	result, err := ctx.Artifacts.Check(ref)
	report.Metadata = result.Metadata
	if err != nil {
		report.Err = err
	}

	switch result.State {
	case artifact.StateMissing:
		report.Status = module.ArtifactStatusMissing
		r.notifyInvalidation(ctx, node, report, module.InvalidationReasonMissing)
	case artifact.StateInvalid:
		if report.Err == nil {
			report.Err = result.Err
		}
		report.Status = module.ArtifactStatusInvalid
		r.notifyInvalidation(ctx, node, report, module.InvalidationReasonInvalidMetadata)
	case artifact.StateError:
		if report.Err == nil {
			report.Err = result.Err
		}
		if report.Err == nil {
			report.Err = fmt.Errorf("resolver: check of %s failed for an unknown reason", ref.ID)
		}
		report.Status = module.ArtifactStatusError
		r.notifyInvalidation(ctx, node, report, module.InvalidationReasonCheckError)
	case artifact.StateReady:
		r.classifyReady(ctx, node, ref, result.Metadata, &report)
	}
	return report
}

// classifyReady decides whether an on-disk artifact still belongs to this
// module at this version, and whether its fingerprint is current.
func (r *Resolver) classifyReady(ctx *module.ModuleContext, node *Node, ref artifact.ArtifactRef, meta *artifact.Metadata, report *ArtifactReport) {
	info := node.Module.Info()
	if meta == nil {
		report.Status = module.ArtifactStatusInvalid
		report.Err = fmt.Errorf("resolver: %s has no metadata stamp", ref.ID)
		r.notifyInvalidation(ctx, node, *report, module.InvalidationReasonInvalidMetadata)
		return
	}
	if meta.ModuleID != info.ID {
		report.Status = module.ArtifactStatusInvalid
		report.Err = fmt.Errorf("resolver: %s was written by %s, not %s", ref.ID, meta.ModuleID, info.ID)
		r.notifyInvalidation(ctx, node, *report, module.InvalidationReasonInvalidMetadata)
		return
	}
	if meta.Version != info.Version {
		report.Status = module.ArtifactStatusOutdated
		r.notifyInvalidation(ctx, node, *report, module.InvalidationReasonVersionMismatch)
		return
	}

	expected, hasExpected, err := r.expectedFingerprint(ctx, node, ref)
	if err != nil {
		report.Status = module.ArtifactStatusError
		report.Err = err
		r.notifyInvalidation(ctx, node, *report, module.InvalidationReasonCheckError)
		return
	}
	if !hasExpected {
		report.Status = module.ArtifactStatusReady
		return
	}
	stored := storedFingerprint(meta, ref.ID)
	report.ExpectedFingerprint = expected
	report.StoredFingerprint = stored
	switch {
	case strings.TrimSpace(stored) == "":
		// Pre-fingerprint artifact; accept it rather than force a rerun.
		report.Status = module.ArtifactStatusReady
	case stored != expected:
		report.Status = module.ArtifactStatusOutdated
		r.notifyInvalidation(ctx, node, *report, module.InvalidationReasonFingerprint)
	default:
		report.Status = module.ArtifactStatusFresh
	}
}

func (r *Resolver) expectedFingerprint(ctx *module.ModuleContext, node *Node, ref artifact.ArtifactRef) (string, bool, error) {
	if node.fingerprints == nil {
		provider, ok := node.Module.(module.Fingerprinter)
		if !ok {
			return "", false, nil
		}
		fingerprints, err := provider.ArtifactFingerprints(ctx)
		if err != nil {
			return "", false, err
		}
		node.fingerprints = fingerprints
	}
	value, ok := node.fingerprints[ref.ID]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false, nil
	}
	return value, true, nil
}

func storedFingerprint(meta *artifact.Metadata, artifactID string) string {
	if meta == nil || len(meta.Notes) == 0 {
		return ""
	}
	return meta.Notes[module.FingerprintNoteKey(artifactID)]
}

func (r *Resolver) notifyInvalidation(ctx *module.ModuleContext, node *Node, report ArtifactReport, reason module.ArtifactInvalidationReason) {
	handler, ok := node.Module.(module.ArtifactInvalidationHandler)
	if !ok {
		return
	}
	event := module.ArtifactInvalidation{
		Artifact:            report.Ref,
		Status:              report.Status,
		Reason:              reason,
		StoredFingerprint:   report.StoredFingerprint,
		ExpectedFingerprint: report.ExpectedFingerprint,
		Metadata:            report.Metadata,
		Err:                 report.Err,
	}
	if err := handler.OnArtifactInvalidation(ctx, event); err != nil {
		node.State = NodeStateError
		node.Err = err
	}
}

func moduleConfig(cfg workflow.ModuleConfig) module.Config {
	if len(cfg) == 0 {
		return nil
	}
	out := make(module.Config, len(cfg))
	for key, value := range cfg {
		out[key] = value
	}
	return out
}
