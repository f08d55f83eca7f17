package trigger

import (
	"fmt"
	"time"
)

// AuthenticationError reports a delivery whose authenticity check failed.
// The HTTP layer maps it to 401 and nothing downstream runs.
type AuthenticationError struct {
	Provider string
	Reason   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Reason)
}

// MalformedPayloadError reports a body that could not be parsed into the
// canonical shape. Mapped to 400.
type MalformedPayloadError struct {
	Provider string
	Err      error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %v", e.Provider, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// EnrichmentNotFoundError means the registry has no record for the event's
// repository or branch. Expected steady state for unregistered repos; the
// router skips the trigger without surfacing a failure.
type EnrichmentNotFoundError struct {
	RepoKey string
	Branch  string
	Level   string // "target" or "branch"
}

func (e *EnrichmentNotFoundError) Error() string {
	if e.Level == "branch" {
		return fmt.Sprintf("no registered branch %q for %s", e.Branch, e.RepoKey)
	}
	return fmt.Sprintf("no registered target for %s", e.RepoKey)
}

// EnrichmentTimeoutError means the registry lookup exceeded its deadline.
// Retried exactly once by the resolver; after that the trigger is skipped.
type EnrichmentTimeoutError struct {
	RepoKey string
	Timeout time.Duration
}

func (e *EnrichmentTimeoutError) Error() string {
	return fmt.Sprintf("registry lookup for %s exceeded %s", e.RepoKey, e.Timeout)
}

// BindingResolutionError means a required binding produced no value.
type BindingResolutionError struct {
	Binding string
	Source  string
	Reason  string
}

func (e *BindingResolutionError) Error() string {
	return fmt.Sprintf("binding %q (%s): %s", e.Binding, e.Source, e.Reason)
}

// TemplateResolutionError means a template placeholder or declared parameter
// had no bound value. Instantiation fails closed.
type TemplateResolutionError struct {
	Trigger     string
	Placeholder string
}

func (e *TemplateResolutionError) Error() string {
	return fmt.Sprintf("trigger %q: no value for %q", e.Trigger, e.Placeholder)
}

// DownstreamCreateError carries a synchronous rejection from the
// orchestration backend.
type DownstreamCreateError struct {
	Resource string
	Status   int
	Reason   string
}

func (e *DownstreamCreateError) Error() string {
	return fmt.Sprintf("backend rejected %s (status %d): %s", e.Resource, e.Status, e.Reason)
}
