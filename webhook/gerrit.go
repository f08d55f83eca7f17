package webhook

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"pipehooks/trigger"
)

// GerritHandler is the trust-network provider adapter: Gerrit runs inside
// the platform perimeter and its webhook plugin sends no credential, so the
// endpoint performs no authenticity check and must only be reachable from
// that network.
type GerritHandler struct {
	handler
}

func NewGerritHandler(router *trigger.Router, logger *log.Logger, maxBody int64) *GerritHandler {
	if logger == nil {
		logger = log.Default()
	}
	h := &GerritHandler{}
	h.handler = handler{provider: "gerrit", parse: h.parseEvent, router: router, logger: logger, maxBody: maxBody}
	return h
}

type gerritAccount struct {
	Name     string `json:"name"`
	Username string `json:"username"`
}

type gerritPayload struct {
	Type   string `json:"type"`
	Change struct {
		Project string        `json:"project"`
		Branch  string        `json:"branch"`
		Number  int           `json:"number"`
		Status  string        `json:"status"`
		Owner   gerritAccount `json:"owner"`
	} `json:"change"`
	PatchSet struct {
		Number   int    `json:"number"`
		Revision string `json:"revision"`
		Ref      string `json:"ref"`
	} `json:"patchSet"`
	Comment   string `json:"comment"`
	RefUpdate struct {
		Project string `json:"project"`
		RefName string `json:"refName"`
		NewRev  string `json:"newRev"`
	} `json:"refUpdate"`
	Author    gerritAccount `json:"author"`
	Uploader  gerritAccount `json:"uploader"`
	Submitter gerritAccount `json:"submitter"`
}

func (h *GerritHandler) parseEvent(_ *http.Request, body []byte) (*trigger.CanonicalEvent, error) {
	var p gerritPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &trigger.MalformedPayloadError{Provider: "gerrit", Err: err}
	}

	event := &trigger.CanonicalEvent{
		Provider:   "gerrit",
		RawPayload: body,
		RawObject:  decodeObject(body),
	}

	switch p.Type {
	case "patchset-created":
		if p.PatchSet.Number > 1 {
			event.Kind = trigger.KindMergeUpdated
		} else {
			event.Kind = trigger.KindMergeOpened
		}
		fillGerritChange(event, &p)
		event.Actor = accountName(p.Uploader)
	case "change-merged":
		event.Kind = trigger.KindMergeClosed
		fillGerritChange(event, &p)
		event.Merged = true
		event.Actor = accountName(p.Submitter)
	case "comment-added":
		event.Kind = trigger.KindComment
		fillGerritChange(event, &p)
		event.Comment = p.Comment
		event.Actor = accountName(p.Author)
	case "ref-updated":
		event.Kind = trigger.KindPush
		event.RepoURL = p.RefUpdate.Project
		event.FullName = p.RefUpdate.Project
		event.Ref = p.RefUpdate.RefName
		event.Branch = strings.TrimPrefix(p.RefUpdate.RefName, "refs/heads/")
		event.CommitSHA = p.RefUpdate.NewRev
		event.ChangeOpen = true
	case "":
		return nil, &trigger.MalformedPayloadError{Provider: "gerrit", Err: errMissingType}
	default:
		return nil, errIgnore
	}
	return event, nil
}

var errMissingType = jsonError("payload has no type field")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func fillGerritChange(event *trigger.CanonicalEvent, p *gerritPayload) {
	event.RepoURL = p.Change.Project
	event.FullName = p.Change.Project
	event.Branch = p.Change.Branch
	event.Ref = p.PatchSet.Ref
	event.CommitSHA = p.PatchSet.Revision
	event.ChangeNumber = p.Change.Number
	event.ChangeOpen = p.Change.Status == "NEW"
}

func accountName(account gerritAccount) string {
	if account.Username != "" {
		return account.Username
	}
	return account.Name
}
