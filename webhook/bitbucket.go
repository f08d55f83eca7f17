package webhook

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"pipehooks/trigger"

	"github.com/go-playground/webhooks/v6/bitbucket"
)

// BitbucketHandler is the basic-auth provider adapter: the webhook is
// registered with credentials in its URL and every delivery must present
// them. The payload itself carries no signature.
type BitbucketHandler struct {
	handler
	hook     *bitbucket.Webhook
	username string
	password string
}

var bitbucketEvents = []bitbucket.Event{
	bitbucket.RepoPushEvent,
	bitbucket.PullRequestCreatedEvent,
	bitbucket.PullRequestUpdatedEvent,
	bitbucket.PullRequestMergedEvent,
	bitbucket.PullRequestDeclinedEvent,
	bitbucket.PullRequestCommentCreatedEvent,
}

func NewBitbucketHandler(username, password string, router *trigger.Router, logger *log.Logger, maxBody int64) (*BitbucketHandler, error) {
	hook, err := bitbucket.New()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &BitbucketHandler{hook: hook, username: username, password: password}
	h.handler = handler{provider: "bitbucket", parse: h.parseEvent, router: router, logger: logger, maxBody: maxBody}
	return h, nil
}

func (h *BitbucketHandler) parseEvent(r *http.Request, body []byte) (*trigger.CanonicalEvent, error) {
	if !h.authenticate(r) {
		return nil, &trigger.AuthenticationError{Provider: "bitbucket", Reason: "basic auth credentials rejected"}
	}

	payload, err := h.hook.Parse(r, bitbucketEvents...)
	if err != nil {
		switch {
		case errors.Is(err, bitbucket.ErrEventNotFound),
			errors.Is(err, bitbucket.ErrEventNotSpecifiedToParse):
			return nil, errIgnore
		default:
			return nil, &trigger.MalformedPayloadError{Provider: "bitbucket", Err: err}
		}
	}

	event := &trigger.CanonicalEvent{
		Provider:   "bitbucket",
		RawPayload: body,
		RawObject:  decodeObject(body),
	}

	switch p := payload.(type) {
	case bitbucket.RepoPushPayload:
		if len(p.Push.Changes) == 0 || p.Push.Changes[0].New.Name == "" {
			return nil, errIgnore
		}
		change := p.Push.Changes[0]
		event.Kind = trigger.KindPush
		event.RepoURL = p.Repository.Links.HTML.Href
		event.FullName = p.Repository.FullName
		event.Branch = change.New.Name
		event.CommitSHA = change.New.Target.Hash
		event.Actor = p.Actor.DisplayName
		event.ChangeOpen = true
	case bitbucket.PullRequestCreatedPayload:
		fillBitbucketPullRequest(event, trigger.KindMergeOpened, p.Actor, p.Repository, p.PullRequest)
	case bitbucket.PullRequestUpdatedPayload:
		fillBitbucketPullRequest(event, trigger.KindMergeUpdated, p.Actor, p.Repository, p.PullRequest)
	case bitbucket.PullRequestMergedPayload:
		fillBitbucketPullRequest(event, trigger.KindMergeClosed, p.Actor, p.Repository, p.PullRequest)
		event.Merged = true
	case bitbucket.PullRequestDeclinedPayload:
		fillBitbucketPullRequest(event, trigger.KindMergeClosed, p.Actor, p.Repository, p.PullRequest)
	case bitbucket.PullRequestCommentCreatedPayload:
		fillBitbucketPullRequest(event, trigger.KindComment, p.Actor, p.Repository, p.PullRequest)
		event.Comment = p.Comment.Content.Raw
	default:
		return nil, errIgnore
	}
	return event, nil
}

func (h *BitbucketHandler) authenticate(r *http.Request) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(h.username))
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(h.password))
	return userMatch&passMatch == 1
}

func fillBitbucketPullRequest(event *trigger.CanonicalEvent, kind string, actor bitbucket.Owner, repo bitbucket.Repository, pr bitbucket.PullRequest) {
	event.Kind = kind
	event.RepoURL = repo.Links.HTML.Href
	event.FullName = repo.FullName
	event.Branch = pr.Destination.Branch.Name
	event.Ref = pr.Source.Branch.Name
	event.CommitSHA = pr.Source.Commit.Hash
	event.ChangeNumber = int(pr.ID)
	event.Actor = actor.DisplayName
	event.ChangeOpen = pr.State == "OPEN"
}
