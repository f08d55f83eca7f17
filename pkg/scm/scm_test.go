package scm

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"pipehooks/trigger"
)

const testTimeout = time.Second

type recordingReporter struct {
	mu      sync.Mutex
	reports []string
	states  []state
}

func (r *recordingReporter) report(ctx context.Context, owner, repo, sha string, st state, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, owner+"/"+repo+"@"+sha)
	r.states = append(r.states, st)
	return nil
}

func TestNewReporterDisabled(t *testing.T) {
	reporter, err := NewReporter(Config{}, nil)
	if err != nil || reporter != nil {
		t.Fatalf("expected nil reporter when disabled, got %v, %v", reporter, err)
	}

	reporter, err = NewReporter(Config{Enabled: true}, nil)
	if err != nil || reporter != nil {
		t.Fatalf("expected nil reporter without tokens, got %v, %v", reporter, err)
	}
}

func TestReportStates(t *testing.T) {
	rec := &recordingReporter{}
	reporter := &Reporter{
		providers: map[string]providerReporter{"github": rec},
		logger:    log.New(io.Discard, "", 0),
		timeout:   testTimeout,
	}

	event := &trigger.CanonicalEvent{Provider: "github", FullName: "acme/shop", CommitSHA: "abc123"}

	reporter.Report(context.Background(), event, trigger.Outcome{Status: trigger.StatusSubmitted, Resource: "run-1"})
	reporter.Report(context.Background(), event, trigger.Outcome{Status: trigger.StatusSubmitFailed})

	if len(rec.reports) != 2 || rec.reports[0] != "acme/shop@abc123" {
		t.Fatalf("unexpected reports: %v", rec.reports)
	}
	if rec.states[0] != statePending || rec.states[1] != stateFailed {
		t.Fatalf("unexpected states: %v", rec.states)
	}
}

// TestReportSkips tests the conditions under which nothing is posted: no
// reporter for the provider, no commit SHA, or an unparsable repo name.
func TestReportSkips(t *testing.T) {
	rec := &recordingReporter{}
	reporter := &Reporter{
		providers: map[string]providerReporter{"github": rec},
		logger:    log.New(io.Discard, "", 0),
		timeout:   testTimeout,
	}
	out := trigger.Outcome{Status: trigger.StatusSubmitted}

	reporter.Report(context.Background(), &trigger.CanonicalEvent{Provider: "gerrit", FullName: "acme/shop", CommitSHA: "abc"}, out)
	reporter.Report(context.Background(), &trigger.CanonicalEvent{Provider: "github", FullName: "acme/shop"}, out)
	reporter.Report(context.Background(), &trigger.CanonicalEvent{Provider: "github", FullName: "shop", CommitSHA: "abc"}, out)

	if len(rec.reports) != 0 {
		t.Fatalf("expected no reports, got %v", rec.reports)
	}
}

func TestSplitFullName(t *testing.T) {
	cases := []struct {
		in    string
		owner string
		repo  string
		ok    bool
	}{
		{"acme/shop", "acme", "shop", true},
		{"group/subgroup/app", "group/subgroup", "app", true},
		{"shop", "", "", false},
		{"/shop", "", "", false},
		{"acme/", "", "", false},
	}
	for _, tc := range cases {
		owner, repo, ok := splitFullName(tc.in)
		if owner != tc.owner || repo != tc.repo || ok != tc.ok {
			t.Fatalf("splitFullName(%q) = %q, %q, %v", tc.in, owner, repo, ok)
		}
	}
}
