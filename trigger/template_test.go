package trigger

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func buildTemplate() ResourceTemplate {
	return ResourceTemplate{
		NamePrefix:  "{{ pipelineRef }}",
		TargetParam: "pipelineRef",
		Labels: map[string]string{
			"app.pipeline/kind":   "build",
			"app.pipeline/branch": "{{ gitBranch }}",
		},
		Params: []ParamDecl{
			{Name: "pipelineRef"},
			{Name: "gitRevision"},
			{Name: "gitBranch"},
		},
		Workspaces: []WorkspaceDecl{{Name: "source", Size: "1Gi"}},
	}
}

func buildParams() ParamSet {
	return ParamSet{
		"pipelineRef": "github-go-beego-app-build",
		"gitRevision": "abc123",
		"gitBranch":   "main",
	}
}

func TestInstantiate(t *testing.T) {
	instance, err := Instantiate("github-main-build", buildTemplate(), buildParams())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if instance.TargetRef != "github-go-beego-app-build" {
		t.Fatalf("unexpected target ref %q", instance.TargetRef)
	}
	if instance.Params["gitRevision"] != "abc123" {
		t.Fatalf("unexpected params: %v", instance.Params)
	}
	if instance.Labels["app.pipeline/branch"] != "main" {
		t.Fatalf("label placeholder not substituted: %v", instance.Labels)
	}
	if len(instance.Workspaces) != 1 || instance.Workspaces[0].Name != "source" {
		t.Fatalf("unexpected workspaces: %v", instance.Workspaces)
	}
	if !strings.HasPrefix(instance.Name, "github-go-beego-app-build-") {
		t.Fatalf("unexpected name %q", instance.Name)
	}
}

// TestInstantiateNameUniqueness tests that two instantiations of the same
// template never collide on the generated name.
func TestInstantiateNameUniqueness(t *testing.T) {
	first, err := Instantiate("t", buildTemplate(), buildParams())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	second, err := Instantiate("t", buildTemplate(), buildParams())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if first.Name == second.Name {
		t.Fatalf("expected unique names, got %q twice", first.Name)
	}
}

func TestInstantiateNameSanitized(t *testing.T) {
	tmpl := buildTemplate()
	tmpl.NamePrefix = "Build/Review #1 " + strings.Repeat("x", 80)
	instance, err := Instantiate("t", tmpl, buildParams())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	valid := regexp.MustCompile(`^[a-z0-9][a-z0-9-]*-[a-f0-9]{8}$`)
	if !valid.MatchString(instance.Name) {
		t.Fatalf("name %q is not backend safe", instance.Name)
	}
	if len(instance.Name) > 62 {
		t.Fatalf("name %q too long", instance.Name)
	}
}

// TestInstantiateMissingParam tests that instantiation is all or nothing: a
// declared parameter without a value yields no resource at all.
func TestInstantiateMissingParam(t *testing.T) {
	params := buildParams()
	delete(params, "gitRevision")
	_, err := Instantiate("t", buildTemplate(), params)
	var tmplErr *TemplateResolutionError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateResolutionError, got %v", err)
	}
	if tmplErr.Placeholder != "gitRevision" {
		t.Fatalf("unexpected placeholder %q", tmplErr.Placeholder)
	}
}

func TestInstantiateMissingTarget(t *testing.T) {
	params := buildParams()
	params["pipelineRef"] = ""
	if _, err := Instantiate("t", buildTemplate(), params); err == nil {
		t.Fatalf("expected error for empty target reference")
	}
}

func TestInstantiateUnresolvedLabelPlaceholder(t *testing.T) {
	tmpl := buildTemplate()
	tmpl.Labels["extra"] = "{{ nope }}"
	_, err := Instantiate("t", tmpl, buildParams())
	var tmplErr *TemplateResolutionError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateResolutionError, got %v", err)
	}
}
