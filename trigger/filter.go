package trigger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// Filter is a compiled applicability expression evaluated against a
// canonical event. Evaluation is pure; a false result is a skip, never an
// error. Expressions combine three kinds of terms:
//
//   - canonical fields as bare identifiers: kind, branch, actor, merged, ...
//   - payload paths under the body namespace: body.pull_request.draft
//   - raw jsonpath terms: $.pull_request.labels[0].name
//
// plus the helper functions contains, like (SQL-style %) and match (regex).
type Filter struct {
	source string
	expr   *govaluate.EvaluableExpression
	paths  map[string]string
}

var filterFunctions = map[string]govaluate.ExpressionFunction{
	"contains": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("contains expects 2 arguments, got %d", len(args))
		}
		switch haystack := args[0].(type) {
		case string:
			needle, ok := args[1].(string)
			if !ok {
				return nil, fmt.Errorf("contains on a string expects a string needle")
			}
			return strings.Contains(haystack, needle), nil
		case []interface{}:
			for _, item := range haystack {
				if item == args[1] {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, nil
		}
	},
	"like": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("like expects 2 arguments, got %d", len(args))
		}
		value, okValue := args[0].(string)
		pattern, okPattern := args[1].(string)
		if !okValue || !okPattern {
			return nil, fmt.Errorf("like expects string arguments")
		}
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), "%", ".*") + "$"
		return regexp.MatchString(expr, value)
	},
	"match": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("match expects 2 arguments, got %d", len(args))
		}
		value, okValue := args[0].(string)
		pattern, okPattern := args[1].(string)
		if !okValue || !okPattern {
			return nil, fmt.Errorf("match expects string arguments")
		}
		return regexp.MatchString(pattern, value)
	},
}

// CompileFilter parses an expression once, at configuration time.
func CompileFilter(expression string) (*Filter, error) {
	filter := &Filter{source: expression, paths: map[string]string{}}
	rewritten := rewriteTerms(expression, filter.paths)
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(rewritten, filterFunctions)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	filter.expr = expr
	return filter, nil
}

// Matches evaluates the filter against an event. An evaluation error (for
// example a path the payload does not carry) is reported so the caller can
// log it, and counts as a non-match.
func (f *Filter) Matches(event *CanonicalEvent) (bool, error) {
	params := event.fields()
	for key, value := range flatten("body", event.RawObject) {
		params[key] = value
	}
	for name, path := range f.paths {
		value, err := jsonpath.Get(path, asDocument(event.RawObject))
		if err != nil {
			return false, fmt.Errorf("path %s: %w", path, err)
		}
		params[name] = value
	}

	result, err := f.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q did not evaluate to a boolean", f.source)
	}
	return matched, nil
}

func (f *Filter) String() string { return f.source }

func asDocument(raw map[string]interface{}) interface{} {
	if raw == nil {
		return map[string]interface{}{}
	}
	return raw
}

var (
	jsonPathTerm = regexp.MustCompile(`\$\.[A-Za-z0-9_*]+(?:\.[A-Za-z0-9_*]+|\[[0-9*]+\])*`)
	dottedTerm   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*|\[[0-9]+\])+`)
)

// rewriteTerms prepares an expression for govaluate: jsonpath terms become
// synthetic variables resolved at evaluation time, and dotted payload paths
// are bracketed so govaluate treats them as single parameter names rather
// than struct accessors. String literals pass through untouched.
func rewriteTerms(expression string, paths map[string]string) string {
	var out strings.Builder
	for _, segment := range splitLiterals(expression) {
		if segment.literal {
			out.WriteString(segment.text)
			continue
		}
		text := jsonPathTerm.ReplaceAllStringFunc(segment.text, func(term string) string {
			name := fmt.Sprintf("__path%d", len(paths))
			paths[name] = term
			return "[" + name + "]"
		})
		text = dottedTerm.ReplaceAllStringFunc(text, func(term string) string {
			return "[" + term + "]"
		})
		out.WriteString(text)
	}
	return out.String()
}

type exprSegment struct {
	text    string
	literal bool
}

func splitLiterals(s string) []exprSegment {
	var segments []exprSegment
	var current strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			current.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				current.WriteByte(s[i])
				continue
			}
			if c == quote {
				segments = append(segments, exprSegment{current.String(), true})
				current.Reset()
				quote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			if current.Len() > 0 {
				segments = append(segments, exprSegment{current.String(), false})
				current.Reset()
			}
			quote = c
		}
		current.WriteByte(c)
	}
	if current.Len() > 0 {
		segments = append(segments, exprSegment{current.String(), quote != 0})
	}
	return segments
}
