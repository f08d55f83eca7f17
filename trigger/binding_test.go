package trigger

import (
	"errors"
	"testing"

	"pipehooks/pkg/registry"
)

func bindingContext() (*CanonicalEvent, *ExtensionContext) {
	event := &CanonicalEvent{
		Provider:     "github",
		Kind:         KindPush,
		RepoURL:      "https://github.com/acme/shop.git",
		Branch:       "main",
		CommitSHA:    "abc123",
		ChangeNumber: 7,
		RawObject: map[string]interface{}{
			"repository": map[string]interface{}{"clone_url": "https://github.com/acme/shop.git"},
			"commits":    []interface{}{map[string]interface{}{"id": "abc123"}},
		},
	}
	ext := &ExtensionContext{
		Target:     registry.TargetRecord{Key: "acme/shop", Name: "shop", Namespace: "acme", DefaultBranch: "main"},
		References: map[string]string{"build": "github-go-beego-app-build", "review": "github-go-beego-app-review"},
		Branch:     "main",
	}
	return event, ext
}

func TestExtractParams(t *testing.T) {
	event, ext := bindingContext()
	fallback := "unset"
	params, err := ExtractParams(event, ext, []Binding{
		{Name: "pipelineRef", Source: "extensions.references.build"},
		{Name: "gitRevision", Source: "event.sha"},
		{Name: "changeNumber", Source: "event.change_number"},
		{Name: "cloneURL", Source: "body.repository.clone_url"},
		{Name: "namespace", Source: "extensions.target.namespace"},
		{Name: "missing", Source: "body.no.such.key", Default: &fallback},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	want := map[string]string{
		"pipelineRef":  "github-go-beego-app-build",
		"gitRevision":  "abc123",
		"changeNumber": "7",
		"cloneURL":     "https://github.com/acme/shop.git",
		"namespace":    "acme",
		"missing":      "unset",
	}
	for name, value := range want {
		if params[name] != value {
			t.Fatalf("param %s: expected %q, got %q", name, value, params[name])
		}
	}
}

// TestExtractParamsMissingWithoutDefault tests that a binding with no value
// and no default fails the whole extraction.
func TestExtractParamsMissingWithoutDefault(t *testing.T) {
	event, ext := bindingContext()
	_, err := ExtractParams(event, ext, []Binding{
		{Name: "pipelineRef", Source: "extensions.references.build"},
		{Name: "missing", Source: "body.no.such.key"},
	})
	var bindErr *BindingResolutionError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingResolutionError, got %v", err)
	}
	if bindErr.Binding != "missing" {
		t.Fatalf("expected failure on binding missing, got %s", bindErr.Binding)
	}
}

func TestExtractParamsUnknownNamespace(t *testing.T) {
	event, ext := bindingContext()
	_, err := ExtractParams(event, ext, []Binding{
		{Name: "x", Source: "payload.foo"},
	})
	var bindErr *BindingResolutionError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected BindingResolutionError, got %v", err)
	}
}

func TestExtractParamsDeterministic(t *testing.T) {
	event, ext := bindingContext()
	bindings := []Binding{
		{Name: "pipelineRef", Source: "extensions.references.review"},
		{Name: "branch", Source: "event.branch"},
	}
	first, err := ExtractParams(event, ext, bindings)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	second, err := ExtractParams(event, ext, bindings)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for name := range first {
		if first[name] != second[name] {
			t.Fatalf("param %s not deterministic: %q vs %q", name, first[name], second[name])
		}
	}
}
