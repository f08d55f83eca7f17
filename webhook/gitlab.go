package webhook

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"pipehooks/trigger"

	"github.com/go-playground/webhooks/v6/gitlab"
)

// GitLabHandler is the shared-token provider adapter: deliveries carry the
// configured token in X-Gitlab-Token and no signature.
type GitLabHandler struct {
	handler
	hook *gitlab.Webhook
}

var gitlabEvents = []gitlab.Event{
	gitlab.PushEvents,
	gitlab.MergeRequestEvents,
	gitlab.CommentEvents,
}

func NewGitLabHandler(secret string, router *trigger.Router, logger *log.Logger, maxBody int64) (*GitLabHandler, error) {
	options := make([]gitlab.Option, 0, 1)
	if secret != "" {
		options = append(options, gitlab.Options.Secret(secret))
	}
	hook, err := gitlab.New(options...)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	h := &GitLabHandler{hook: hook}
	h.handler = handler{provider: "gitlab", parse: h.parseEvent, router: router, logger: logger, maxBody: maxBody}
	return h, nil
}

func (h *GitLabHandler) parseEvent(r *http.Request, body []byte) (*trigger.CanonicalEvent, error) {
	payload, err := h.hook.Parse(r, gitlabEvents...)
	if err != nil {
		switch {
		case errors.Is(err, gitlab.ErrGitLabTokenVerificationFailed):
			return nil, &trigger.AuthenticationError{Provider: "gitlab", Reason: err.Error()}
		case errors.Is(err, gitlab.ErrEventNotFound),
			errors.Is(err, gitlab.ErrEventNotSpecifiedToParse):
			return nil, errIgnore
		default:
			return nil, &trigger.MalformedPayloadError{Provider: "gitlab", Err: err}
		}
	}

	event := &trigger.CanonicalEvent{
		Provider:   "gitlab",
		RawPayload: body,
		RawObject:  decodeObject(body),
	}

	switch p := payload.(type) {
	case gitlab.PushEventPayload:
		event.Kind = trigger.KindPush
		event.RepoURL = p.Project.GitHTTPURL
		event.FullName = p.Project.PathWithNamespace
		event.Ref = p.Ref
		event.Branch = strings.TrimPrefix(p.Ref, "refs/heads/")
		event.CommitSHA = p.After
		event.Actor = p.UserUsername
		event.ChangeOpen = true
	case gitlab.MergeRequestEventPayload:
		kind := gitlabMergeKind(p.ObjectAttributes.Action)
		if kind == "" {
			return nil, errIgnore
		}
		event.Kind = kind
		event.RepoURL = p.Project.GitHTTPURL
		event.FullName = p.Project.PathWithNamespace
		event.Branch = p.ObjectAttributes.TargetBranch
		event.Ref = p.ObjectAttributes.SourceBranch
		event.CommitSHA = p.ObjectAttributes.LastCommit.ID
		event.ChangeNumber = int(p.ObjectAttributes.IID)
		event.Actor = p.User.UserName
		event.ChangeOpen = p.ObjectAttributes.State == "opened"
		event.Merged = p.ObjectAttributes.Action == "merge"
	case gitlab.CommentEventPayload:
		event.Kind = trigger.KindComment
		event.RepoURL = p.Project.GitHTTPURL
		event.FullName = p.Project.PathWithNamespace
		event.Comment = p.ObjectAttributes.Note
		event.Actor = p.User.UserName
		if p.MergeRequest.IID != 0 {
			event.Branch = p.MergeRequest.TargetBranch
			event.Ref = p.MergeRequest.SourceBranch
			event.CommitSHA = p.MergeRequest.LastCommit.ID
			event.ChangeNumber = int(p.MergeRequest.IID)
			event.ChangeOpen = p.MergeRequest.State == "opened"
		} else {
			event.Branch = p.Project.DefaultBranch
		}
	default:
		return nil, errIgnore
	}
	return event, nil
}

func gitlabMergeKind(action string) string {
	switch action {
	case "open", "reopen":
		return trigger.KindMergeOpened
	case "update":
		return trigger.KindMergeUpdated
	case "merge", "close":
		return trigger.KindMergeClosed
	default:
		return ""
	}
}
