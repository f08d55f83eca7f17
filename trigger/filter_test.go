package trigger

import "testing"

func filterEvent() *CanonicalEvent {
	return &CanonicalEvent{
		Provider:     "github",
		Kind:         KindMergeOpened,
		RepoURL:      "https://github.com/acme/shop.git",
		FullName:     "acme/shop",
		Branch:       "main",
		Ref:          "feature/checkout",
		CommitSHA:    "abc123",
		ChangeNumber: 42,
		Actor:        "dev",
		ChangeOpen:   true,
		RawObject: map[string]interface{}{
			"pull_request": map[string]interface{}{
				"draft": false,
				"labels": []interface{}{
					map[string]interface{}{"name": "urgent"},
				},
			},
		},
	}
}

// TestFilterMatches covers the three term kinds an expression can combine:
// canonical fields, dotted body paths and raw jsonpath terms.
func TestFilterMatches(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want bool
	}{
		{"kind and branch", `kind == "merge_opened" && branch == "main"`, true},
		{"kind mismatch", `kind == "push"`, false},
		{"bool field", `open && !merged`, true},
		{"change number", `change_number > 10`, true},
		{"dotted body path", `!body.pull_request.draft`, true},
		{"jsonpath term", `$.pull_request.labels[0].name == "urgent"`, true},
		{"contains on string", `contains(branch, "ai")`, true},
		{"like", `like(ref, "feature/%")`, true},
		{"match", `match(sha, "^[a-f0-9]+$")`, true},
		{"literal with dots untouched", `repo == "https://github.com/acme/shop.git"`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filter, err := CompileFilter(tc.expr)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			got, err := filter.Matches(filterEvent())
			if err != nil {
				t.Fatalf("matches: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v for %q", tc.want, tc.expr)
			}
		})
	}
}

// TestFilterMissingPathIsNonMatch tests that a jsonpath the payload does not
// carry counts as a non-match and surfaces the evaluation error.
func TestFilterMissingPathIsNonMatch(t *testing.T) {
	filter, err := CompileFilter(`$.no.such.path == "x"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := filter.Matches(filterEvent())
	if got {
		t.Fatalf("expected non-match")
	}
	if err == nil {
		t.Fatalf("expected evaluation error for missing path")
	}
}

func TestFilterNonBooleanResult(t *testing.T) {
	filter, err := CompileFilter(`branch`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := filter.Matches(filterEvent()); err == nil {
		t.Fatalf("expected error for non-boolean result")
	}
}

func TestCompileFilterBadExpression(t *testing.T) {
	if _, err := CompileFilter(`kind == `); err == nil {
		t.Fatalf("expected compile error")
	}
}
