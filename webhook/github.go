package webhook

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"pipehooks/trigger"

	"github.com/go-playground/webhooks/v6/github"
)

// GitHubHandler is the signature-validated provider adapter: deliveries
// carry an HMAC signature computed with the shared webhook secret.
type GitHubHandler struct {
	handler
	hook *github.Webhook
}

var githubEvents = []github.Event{
	github.PushEvent,
	github.PullRequestEvent,
	github.IssueCommentEvent,
	github.PingEvent,
}

func NewGitHubHandler(secret string, router *trigger.Router, logger *log.Logger, maxBody int64) (*GitHubHandler, error) {
	hook, err := github.New(github.Options.Secret(secret))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &GitHubHandler{hook: hook}
	h.handler = handler{provider: "github", parse: h.parseEvent, router: router, logger: logger, maxBody: maxBody}
	return h, nil
}

func (h *GitHubHandler) parseEvent(r *http.Request, body []byte) (*trigger.CanonicalEvent, error) {
	payload, err := h.hook.Parse(r, githubEvents...)
	if err != nil {
		switch {
		case errors.Is(err, github.ErrHMACVerificationFailed),
			errors.Is(err, github.ErrMissingHubSignatureHeader):
			return nil, &trigger.AuthenticationError{Provider: "github", Reason: err.Error()}
		case errors.Is(err, github.ErrEventNotFound),
			errors.Is(err, github.ErrEventNotSpecifiedToParse):
			return nil, errIgnore
		default:
			return nil, &trigger.MalformedPayloadError{Provider: "github", Err: err}
		}
	}

	event := &trigger.CanonicalEvent{
		Provider:   "github",
		RawPayload: body,
		RawObject:  decodeObject(body),
	}

	switch p := payload.(type) {
	case github.PingPayload:
		return nil, errPing
	case github.PushPayload:
		event.Kind = trigger.KindPush
		event.RepoURL = p.Repository.CloneURL
		event.FullName = p.Repository.FullName
		event.Ref = p.Ref
		event.Branch = strings.TrimPrefix(p.Ref, "refs/heads/")
		event.CommitSHA = p.After
		event.Actor = p.Sender.Login
		event.ChangeOpen = true
	case github.PullRequestPayload:
		kind := githubMergeKind(p.Action)
		if kind == "" {
			return nil, errIgnore
		}
		event.Kind = kind
		event.RepoURL = p.Repository.CloneURL
		event.FullName = p.Repository.FullName
		// Enrichment resolves against the branch the change lands on.
		event.Branch = p.PullRequest.Base.Ref
		event.Ref = p.PullRequest.Head.Ref
		event.CommitSHA = p.PullRequest.Head.Sha
		event.ChangeNumber = int(p.Number)
		event.Actor = p.Sender.Login
		event.ChangeOpen = p.PullRequest.State == "open"
		event.Merged = p.PullRequest.Merged
	case github.IssueCommentPayload:
		if p.Action != "created" {
			return nil, errIgnore
		}
		event.Kind = trigger.KindComment
		event.RepoURL = p.Repository.CloneURL
		event.FullName = p.Repository.FullName
		event.Branch = p.Repository.DefaultBranch
		event.ChangeNumber = int(p.Issue.Number)
		event.Comment = p.Comment.Body
		event.Actor = p.Sender.Login
		event.ChangeOpen = p.Issue.State == "open"
	default:
		return nil, errIgnore
	}
	return event, nil
}

func githubMergeKind(action string) string {
	switch action {
	case "opened", "reopened":
		return trigger.KindMergeOpened
	case "synchronize":
		return trigger.KindMergeUpdated
	case "closed":
		return trigger.KindMergeClosed
	default:
		return ""
	}
}
