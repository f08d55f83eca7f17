package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const gitlabToken = "shared-token"

const gitlabPushBody = `{
	"object_kind": "push",
	"ref": "refs/heads/main",
	"after": "abc123",
	"user_username": "dev",
	"project": {
		"path_with_namespace": "acme/shop",
		"git_http_url": "https://gitlab.example.com/acme/shop.git",
		"default_branch": "main"
	}
}`

func gitlabRequest(t *testing.T, event, body, token string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhooks/gitlab", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Gitlab-Event", event)
	if token != "" {
		r.Header.Set("X-Gitlab-Token", token)
	}
	return r
}

func TestGitLabPushSubmits(t *testing.T) {
	router, submitter := testRouter(t, "gitlab")
	handler, err := NewGitLabHandler(gitlabToken, router, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, gitlabRequest(t, "Push Hook", gitlabPushBody, gitlabToken))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if submitter.count() != 1 {
		t.Fatalf("expected 1 submission, got %d", submitter.count())
	}
}

// TestGitLabRejectsBadToken tests that a wrong or absent shared token is a
// 401, matching the HMAC handling on the signature-based providers.
func TestGitLabRejectsBadToken(t *testing.T) {
	router, submitter := testRouter(t, "gitlab")
	handler, err := NewGitLabHandler(gitlabToken, router, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, gitlabRequest(t, "Push Hook", gitlabPushBody, "wrong"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong token, got %d", w.Code)
	}
	if submitter.count() != 0 {
		t.Fatalf("expected no submissions")
	}
}

func TestGitLabMergeKindMapping(t *testing.T) {
	cases := map[string]string{
		"open":     "merge_opened",
		"reopen":   "merge_opened",
		"update":   "merge_updated",
		"merge":    "merge_closed",
		"close":    "merge_closed",
		"approved": "",
	}
	for action, want := range cases {
		if got := gitlabMergeKind(action); got != want {
			t.Fatalf("gitlabMergeKind(%q) = %q, want %q", action, got, want)
		}
	}
}
