package webhook

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"pipehooks/pkg/registry"
	"pipehooks/trigger"
)

type stubStore struct{}

func (stubStore) LookupTarget(ctx context.Context, key string) (*registry.TargetRecord, error) {
	if key != "acme/shop" {
		return nil, registry.ErrNotFound
	}
	return &registry.TargetRecord{Key: "acme/shop", Name: "shop", Namespace: "acme", DefaultBranch: "main"}, nil
}

func (stubStore) LookupBranch(ctx context.Context, target *registry.TargetRecord, branch string) (*registry.BranchRecord, error) {
	if branch != "main" {
		return nil, registry.ErrNotFound
	}
	return &registry.BranchRecord{
		TargetKey: target.Key,
		Name:      branch,
		Pipelines: map[string]string{"build": "github-go-beego-app-build"},
	}, nil
}

func (stubStore) Close() error { return nil }

type recordingSubmitter struct {
	mu        sync.Mutex
	submitted []*trigger.ResourceInstance
}

func (s *recordingSubmitter) Submit(ctx context.Context, instance *trigger.ResourceInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, instance)
	return nil
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted)
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// testRouter wires one push trigger for the given provider over a stub
// registry and a recording backend.
func testRouter(t *testing.T, provider string) (*trigger.Router, *recordingSubmitter) {
	t.Helper()
	filter, err := trigger.CompileFilter(`kind == "push" && branch == "main"`)
	if err != nil {
		t.Fatalf("compile filter: %v", err)
	}
	submitter := &recordingSubmitter{}
	router, err := trigger.NewRouter(trigger.RouterConfig{
		Triggers: []trigger.Spec{{
			Name:     provider + "-main-build",
			Provider: provider,
			Kind:     "build",
			Filter:   filter,
			Bindings: []trigger.Binding{
				{Name: "pipelineRef", Source: "extensions.references.build"},
				{Name: "gitRevision", Source: "event.sha"},
			},
			Template: trigger.ResourceTemplate{
				NamePrefix:  "{{ pipelineRef }}",
				TargetParam: "pipelineRef",
				Params:      []trigger.ParamDecl{{Name: "pipelineRef"}, {Name: "gitRevision"}},
			},
		}},
		Resolver:  trigger.NewResolver(stubStore{}, time.Second, testLogger()),
		Submitter: submitter,
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router, submitter
}
