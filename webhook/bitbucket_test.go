package webhook

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const bitbucketPushBody = `{
	"push": {
		"changes": [
			{"new": {"name": "main", "target": {"hash": "abc123"}}}
		]
	},
	"repository": {
		"full_name": "acme/shop",
		"links": {"html": {"href": "https://bitbucket.org/acme/shop"}}
	},
	"actor": {"display_name": "Dev"}
}`

func bitbucketRequest(t *testing.T, event, body string, withAuth bool) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhooks/bitbucket", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Event-Key", event)
	if withAuth {
		r.SetBasicAuth("hookuser", "hookpass")
	}
	return r
}

func TestBitbucketPushSubmits(t *testing.T) {
	router, submitter := testRouter(t, "bitbucket")
	handler, err := NewBitbucketHandler("hookuser", "hookpass", router, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bitbucketRequest(t, "repo:push", bitbucketPushBody, true))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if submitter.count() != 1 {
		t.Fatalf("expected 1 submission, got %d", submitter.count())
	}
}

func TestBitbucketRejectsMissingAuth(t *testing.T) {
	router, submitter := testRouter(t, "bitbucket")
	handler, err := NewBitbucketHandler("hookuser", "hookpass", router, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bitbucketRequest(t, "repo:push", bitbucketPushBody, false))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	r := bitbucketRequest(t, "repo:push", bitbucketPushBody, false)
	r.SetBasicAuth("hookuser", "wrong")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", w.Code)
	}

	if submitter.count() != 0 {
		t.Fatalf("expected no submissions")
	}
}

// TestBitbucketPushWithoutBranchIgnored tests that a push whose change has
// no new branch (a branch deletion) is acknowledged but not routed.
func TestBitbucketPushWithoutBranchIgnored(t *testing.T) {
	router, submitter := testRouter(t, "bitbucket")
	handler, err := NewBitbucketHandler("hookuser", "hookpass", router, testLogger(), 1<<20)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"push": {"changes": [{"new": null}]}, "repository": {"full_name": "acme/shop"}, "actor": {}}`
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bitbucketRequest(t, "repo:push", body, true))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if submitter.count() != 0 {
		t.Fatalf("expected no submissions")
	}
}
