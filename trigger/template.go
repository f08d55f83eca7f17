package trigger

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// ResourceTemplate is the static blueprint for the execution resource a
// trigger instantiates. The target reference is never a literal here: the
// template only names which parameter carries it, and that parameter is
// bound from the enrichment context.
type ResourceTemplate struct {
	// NamePrefix seeds the generated resource name; placeholders allowed.
	NamePrefix string `yaml:"name_prefix"`
	// TargetParam names the parameter holding the resolved pipeline
	// reference.
	TargetParam string            `yaml:"target_param"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Params      []ParamDecl       `yaml:"params,omitempty"`
	Workspaces  []WorkspaceDecl   `yaml:"workspaces,omitempty"`
}

// ParamDecl declares a parameter the resource requires.
type ParamDecl struct {
	Name string `yaml:"name"`
}

// WorkspaceDecl declares a transient storage request.
type WorkspaceDecl struct {
	Name string `yaml:"name"`
	Size string `yaml:"size,omitempty"`
}

// ResourceInstance is the fully materialized execution descriptor. Once
// built it is handed to the orchestration backend and not owned further.
type ResourceInstance struct {
	Name       string             `json:"name"`
	Labels     map[string]string  `json:"labels,omitempty"`
	TargetRef  string             `json:"target_ref"`
	Params     map[string]string  `json:"params"`
	Workspaces []WorkspaceRequest `json:"workspaces,omitempty"`
}

// WorkspaceRequest is a materialized transient storage request.
type WorkspaceRequest struct {
	Name string `json:"name"`
	Size string `json:"size,omitempty"`
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Instantiate substitutes params into the template. Any declared parameter
// or placeholder without a value fails the whole instantiation; no partial
// resource is ever produced. The generated name is unique per call, not
// deterministic across redeliveries.
func Instantiate(triggerName string, tmpl ResourceTemplate, params ParamSet) (*ResourceInstance, error) {
	resolved := make(map[string]string, len(tmpl.Params))
	for _, decl := range tmpl.Params {
		value, ok := params[decl.Name]
		if !ok {
			return nil, &TemplateResolutionError{Trigger: triggerName, Placeholder: decl.Name}
		}
		resolved[decl.Name] = value
	}

	if tmpl.TargetParam == "" {
		return nil, &TemplateResolutionError{Trigger: triggerName, Placeholder: "target_param"}
	}
	targetRef, ok := params[tmpl.TargetParam]
	if !ok || targetRef == "" {
		return nil, &TemplateResolutionError{Trigger: triggerName, Placeholder: tmpl.TargetParam}
	}

	labels := make(map[string]string, len(tmpl.Labels))
	for key, value := range tmpl.Labels {
		substituted, err := substitute(triggerName, value, params)
		if err != nil {
			return nil, err
		}
		labels[key] = substituted
	}

	prefix, err := substitute(triggerName, tmpl.NamePrefix, params)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = triggerName
	}

	workspaces := make([]WorkspaceRequest, 0, len(tmpl.Workspaces))
	for _, decl := range tmpl.Workspaces {
		workspaces = append(workspaces, WorkspaceRequest{Name: decl.Name, Size: decl.Size})
	}

	return &ResourceInstance{
		Name:       generateName(prefix),
		Labels:     labels,
		TargetRef:  targetRef,
		Params:     resolved,
		Workspaces: workspaces,
	}, nil
}

func substitute(triggerName, text string, params ParamSet) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		value, ok := params[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return value
	})
	if missing != "" {
		return "", &TemplateResolutionError{Trigger: triggerName, Placeholder: missing}
	}
	return out, nil
}

var nameCleanup = regexp.MustCompile(`[^a-z0-9-]+`)

// generateName derives a backend-safe unique name: sanitized prefix plus a
// random suffix. VCS platforms may redeliver; duplicate creations are the
// backend's concern, so no idempotency is attempted here.
func generateName(prefix string) string {
	base := nameCleanup.ReplaceAllString(strings.ToLower(prefix), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "run"
	}
	if len(base) > 52 {
		base = strings.Trim(base[:52], "-")
	}
	return base + "-" + randomSuffix()
}

func randomSuffix() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
