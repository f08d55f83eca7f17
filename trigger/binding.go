package trigger

import (
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Binding declares how one parameter is extracted. Source paths are
// namespaced so a path is never ambiguous about what it reads:
//
//	event.branch                     canonical event field
//	body.repository.clone_url        raw payload path
//	extensions.references.build      enrichment output path
type Binding struct {
	Name    string  `yaml:"name"`
	Source  string  `yaml:"source"`
	Default *string `yaml:"default,omitempty"`
}

// ParamSet is the flat parameter map handed to template instantiation.
// Extraction is deterministic: the same event, context and bindings always
// produce the same set.
type ParamSet map[string]string

// ExtractParams resolves every binding against the event and enrichment
// context. A binding that resolves to nothing and declares no default fails
// the whole extraction; defaults fall back silently.
func ExtractParams(event *CanonicalEvent, ext *ExtensionContext, bindings []Binding) (ParamSet, error) {
	params := make(ParamSet, len(bindings))
	for _, binding := range bindings {
		value, ok, err := resolveSource(event, ext, binding.Source)
		if err != nil {
			return nil, &BindingResolutionError{Binding: binding.Name, Source: binding.Source, Reason: err.Error()}
		}
		if !ok {
			if binding.Default == nil {
				return nil, &BindingResolutionError{Binding: binding.Name, Source: binding.Source, Reason: "no value and no default"}
			}
			params[binding.Name] = *binding.Default
			continue
		}
		params[binding.Name] = value
	}
	return params, nil
}

func resolveSource(event *CanonicalEvent, ext *ExtensionContext, source string) (string, bool, error) {
	namespace, path, found := strings.Cut(source, ".")
	if !found || path == "" {
		return "", false, &BindingResolutionError{Source: source, Reason: "source must be <namespace>.<path>"}
	}
	switch namespace {
	case "event":
		value, ok := event.fields()[path]
		if !ok {
			return "", false, nil
		}
		return stringify(value)
	case "body":
		return lookupPath(asDocument(event.RawObject), path)
	case "extensions":
		return lookupPath(ext.document(), path)
	default:
		return "", false, &BindingResolutionError{Source: source, Reason: "unknown namespace " + namespace}
	}
}

func lookupPath(document interface{}, path string) (string, bool, error) {
	value, err := jsonpath.Get("$."+path, document)
	if err != nil {
		// An absent key is a miss, not an extraction failure; defaults
		// may still cover it.
		return "", false, nil
	}
	return stringify(value)
}

func stringify(value interface{}) (string, bool, error) {
	switch typed := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return typed, true, nil
	case bool:
		return strconv.FormatBool(typed), true, nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true, nil
	case int:
		return strconv.Itoa(typed), true, nil
	default:
		return "", false, nil
	}
}
