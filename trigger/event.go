package trigger

import "pipehooks/pkg/registry"

// Canonical event kinds. Every provider adapter maps its native payloads
// onto this closed set.
const (
	KindPush         = "push"
	KindMergeOpened  = "merge_opened"
	KindMergeUpdated = "merge_updated"
	KindMergeClosed  = "merge_closed"
	KindComment      = "comment"
)

// CanonicalEvent is the provider-independent view of one webhook delivery.
// Adapters build it once; every later stage reads it and never mutates it.
type CanonicalEvent struct {
	Provider     string `json:"provider"`
	Kind         string `json:"kind"`
	RepoURL      string `json:"repo_url"`
	FullName     string `json:"full_name"`
	Branch       string `json:"branch"`
	Ref          string `json:"ref"`
	CommitSHA    string `json:"sha"`
	ChangeNumber int    `json:"change_number"`
	Actor        string `json:"actor"`
	Comment      string `json:"comment,omitempty"`
	ChangeOpen   bool   `json:"open"`
	Merged       bool   `json:"merged"`
	RequestID    string `json:"request_id,omitempty"`

	// RawPayload is the body as delivered; RawObject is its decoded form,
	// kept for jsonpath lookups in filters and bindings.
	RawPayload []byte                 `json:"-"`
	RawObject  map[string]interface{} `json:"-"`
}

// ExtensionContext is what enrichment resolved for an event: the registered
// target identity and its branch-scoped execution references. It is empty
// until the resolver succeeds.
type ExtensionContext struct {
	Target registry.TargetRecord `json:"target"`
	// References maps an execution kind (build, review, ...) to the
	// pipeline reference registered for the event's branch.
	References map[string]string `json:"references"`
	// Branch is the normalized branch name the registry matched on.
	Branch string `json:"branch"`
}

// Reference returns the pipeline reference for an execution kind.
func (x *ExtensionContext) Reference(kind string) (string, bool) {
	if x == nil || x.References == nil {
		return "", false
	}
	ref, ok := x.References[kind]
	return ref, ok
}

// document renders the context as a plain map so binding sources under the
// extensions namespace resolve with the same path machinery as the body.
func (x *ExtensionContext) document() map[string]interface{} {
	if x == nil {
		return map[string]interface{}{}
	}
	refs := make(map[string]interface{}, len(x.References))
	for kind, ref := range x.References {
		refs[kind] = ref
	}
	return map[string]interface{}{
		"target": map[string]interface{}{
			"key":            x.Target.Key,
			"name":           x.Target.Name,
			"namespace":      x.Target.Namespace,
			"default_branch": x.Target.DefaultBranch,
		},
		"references": refs,
		"branch":     x.Branch,
	}
}

// fields exposes the canonical event as filter/binding variables.
func (e *CanonicalEvent) fields() map[string]interface{} {
	return map[string]interface{}{
		"provider":      e.Provider,
		"kind":          e.Kind,
		"repo":          e.RepoURL,
		"full_name":     e.FullName,
		"branch":        e.Branch,
		"ref":           e.Ref,
		"sha":           e.CommitSHA,
		"change_number": float64(e.ChangeNumber),
		"actor":         e.Actor,
		"comment":       e.Comment,
		"open":          e.ChangeOpen,
		"merged":        e.Merged,
	}
}
