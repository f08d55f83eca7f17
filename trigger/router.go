package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Submitter hands a materialized resource to the orchestration backend.
// A synchronous rejection comes back as *DownstreamCreateError.
type Submitter interface {
	Submit(ctx context.Context, instance *ResourceInstance) error
}

// Notifier publishes terminal outcomes to interested consumers. Optional.
type Notifier interface {
	PublishOutcome(ctx context.Context, topic string, outcome Outcome, drivers []string) error
}

// StatusReporter posts a status for the event's commit back to the
// originating provider. Optional, best effort.
type StatusReporter interface {
	Report(ctx context.Context, event *CanonicalEvent, outcome Outcome)
}

// Spec is one compiled trigger definition: which provider it listens to,
// when it applies, what it extracts and what it instantiates.
type Spec struct {
	Name     string
	Provider string
	// Kind is the execution kind (build, review, ...) whose registered
	// pipeline reference this trigger runs.
	Kind          string
	Filter        *Filter
	Bindings      []Binding
	Template      ResourceTemplate
	NotifyTopic   string
	NotifyDrivers []string
}

// Validate enforces the static invariants a trigger definition must hold:
// every declared template parameter is produced by exactly one binding, and
// the target-reference parameter is bound from the enrichment context, never
// from a literal.
func (s *Spec) Validate() error {
	if s.Name == "" || s.Provider == "" {
		return fmt.Errorf("trigger needs a name and a provider")
	}
	if s.Filter == nil {
		return fmt.Errorf("trigger %q has no filter", s.Name)
	}
	byName := make(map[string]Binding, len(s.Bindings))
	for _, binding := range s.Bindings {
		if _, dup := byName[binding.Name]; dup {
			return fmt.Errorf("trigger %q: duplicate binding %q", s.Name, binding.Name)
		}
		byName[binding.Name] = binding
	}
	for _, decl := range s.Template.Params {
		if _, ok := byName[decl.Name]; !ok {
			return fmt.Errorf("trigger %q: template parameter %q has no binding", s.Name, decl.Name)
		}
	}
	if s.Template.TargetParam == "" {
		return fmt.Errorf("trigger %q: template needs target_param", s.Name)
	}
	targetBinding, ok := byName[s.Template.TargetParam]
	if !ok {
		return fmt.Errorf("trigger %q: target parameter %q has no binding", s.Name, s.Template.TargetParam)
	}
	if !strings.HasPrefix(targetBinding.Source, "extensions.") || targetBinding.Default != nil {
		return fmt.Errorf("trigger %q: target parameter %q must be bound from extensions, without a default", s.Name, s.Template.TargetParam)
	}
	return nil
}

// Terminal statuses per (event, trigger) pair.
const (
	StatusSubmitted      = "submitted"
	StatusFiltered       = "filtered"
	StatusEnrichmentMiss = "enrichment_miss"
	StatusEnrichFailed   = "enrichment_failed"
	StatusBindingFailed  = "binding_failed"
	StatusTemplateFailed = "template_failed"
	StatusSubmitFailed   = "submit_failed"
)

// Outcome records how one trigger's pipeline ended for one event.
type Outcome struct {
	Trigger  string `json:"trigger"`
	Provider string `json:"provider"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Resource string `json:"resource,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Err      error  `json:"-"`
}

// RouterConfig wires the router's collaborators. Triggers, resolver and
// submitter are required; notifier and reporter are optional.
type RouterConfig struct {
	Triggers  []Spec
	Resolver  *Resolver
	Submitter Submitter
	Notifier  Notifier
	Reporter  StatusReporter
	Logger    *log.Logger
	// Strict surfaces filter evaluation errors in the log instead of
	// treating them as silent non-matches.
	Strict bool
}

// Router owns the per-event pipeline: filter, enrich, bind, instantiate,
// submit. It holds only immutable configuration and concurrency-safe
// clients, so one Router serves all deliveries.
type Router struct {
	triggers  []Spec
	resolver  *Resolver
	submitter Submitter
	notifier  Notifier
	reporter  StatusReporter
	logger    *log.Logger
	strict    bool
}

func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("router needs a resolver")
	}
	if cfg.Submitter == nil {
		return nil, errors.New("router needs a submitter")
	}
	for i := range cfg.Triggers {
		if err := cfg.Triggers[i].Validate(); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		triggers:  cfg.Triggers,
		resolver:  cfg.Resolver,
		submitter: cfg.Submitter,
		notifier:  cfg.Notifier,
		reporter:  cfg.Reporter,
		logger:    logger,
		strict:    cfg.Strict,
	}, nil
}

// Process fans a validated event out to every trigger registered for its
// provider. Triggers evaluate concurrently and independently: a failure in
// one never cancels a sibling, and nothing here is fatal to the process.
func (r *Router) Process(ctx context.Context, event *CanonicalEvent) []Outcome {
	specs := make([]Spec, 0, len(r.triggers))
	for _, spec := range r.triggers {
		if spec.Provider == event.Provider {
			specs = append(specs, spec)
		}
	}

	outcomes := make([]Outcome, len(specs))
	var wg sync.WaitGroup
	for i := range specs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = r.runTrigger(ctx, specs[i], event)
		}(i)
	}
	wg.Wait()
	return outcomes
}

func (r *Router) runTrigger(ctx context.Context, spec Spec, event *CanonicalEvent) Outcome {
	out := Outcome{
		Trigger:  spec.Name,
		Provider: event.Provider,
		Repo:     event.FullName,
		Branch:   event.Branch,
		Kind:     spec.Kind,
	}

	matched, err := spec.Filter.Matches(event)
	if err != nil && r.strict {
		r.logger.Printf("trigger %s: filter %q: %v", spec.Name, spec.Filter, err)
	}
	if !matched {
		out.Status = StatusFiltered
		return out
	}

	ext, err := r.resolver.Resolve(ctx, event)
	if err != nil {
		return r.finish(ctx, event, spec, r.enrichOutcome(out, spec, err))
	}
	out.Branch = ext.Branch

	if _, ok := ext.Reference(spec.Kind); !ok {
		miss := &EnrichmentNotFoundError{RepoKey: ext.Target.Key, Branch: ext.Branch, Level: "branch"}
		r.logger.Printf("trigger %s: no %s pipeline registered for %s@%s", spec.Name, spec.Kind, ext.Target.Key, ext.Branch)
		return r.finish(ctx, event, spec, withError(out, StatusEnrichmentMiss, miss))
	}

	params, err := ExtractParams(event, ext, spec.Bindings)
	if err != nil {
		r.logger.Printf("trigger %s: %v", spec.Name, err)
		return r.finish(ctx, event, spec, withError(out, StatusBindingFailed, err))
	}

	instance, err := Instantiate(spec.Name, spec.Template, params)
	if err != nil {
		r.logger.Printf("trigger %s: %v", spec.Name, err)
		return r.finish(ctx, event, spec, withError(out, StatusTemplateFailed, err))
	}

	if err := r.submitter.Submit(ctx, instance); err != nil {
		r.logger.Printf("trigger %s: submit %s: %v", spec.Name, instance.Name, err)
		out.Resource = instance.Name
		return r.finish(ctx, event, spec, withError(out, StatusSubmitFailed, err))
	}

	out.Status = StatusSubmitted
	out.Resource = instance.Name
	r.logger.Printf("trigger %s: submitted %s (target %s)", spec.Name, instance.Name, instance.TargetRef)
	return r.finish(ctx, event, spec, out)
}

func (r *Router) enrichOutcome(out Outcome, spec Spec, err error) Outcome {
	var miss *EnrichmentNotFoundError
	if errors.As(err, &miss) {
		r.logger.Printf("trigger %s: %v, skipping", spec.Name, err)
		return withError(out, StatusEnrichmentMiss, err)
	}
	r.logger.Printf("trigger %s: enrichment failed: %v", spec.Name, err)
	return withError(out, StatusEnrichFailed, err)
}

func (r *Router) finish(ctx context.Context, event *CanonicalEvent, spec Spec, out Outcome) Outcome {
	if r.notifier != nil && spec.NotifyTopic != "" {
		if err := r.notifier.PublishOutcome(ctx, spec.NotifyTopic, out, spec.NotifyDrivers); err != nil {
			r.logger.Printf("trigger %s: notify %s: %v", spec.Name, spec.NotifyTopic, err)
		}
	}
	if r.reporter != nil && (out.Status == StatusSubmitted || out.Status == StatusSubmitFailed) {
		r.reporter.Report(ctx, event, out)
	}
	return out
}

func withError(out Outcome, status string, err error) Outcome {
	out.Status = status
	out.Err = err
	if err != nil {
		out.Reason = err.Error()
	}
	return out
}
