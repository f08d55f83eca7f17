package webhook

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"pipehooks/internal"
	"pipehooks/trigger"
)

// Sentinel results an adapter can return instead of an event: errPing for
// provider health checks (answered 200), errIgnore for event types the
// engine does not route (answered 202, nothing runs).
var (
	errPing   = errors.New("ping event")
	errIgnore = errors.New("event not routed")
)

// handler is the shared HTTP plumbing for every provider endpoint: body
// limit, request ID, adapter classification, router dispatch. A delivery
// rejected during validation never reaches the router.
type handler struct {
	provider string
	parse    func(r *http.Request, body []byte) (*trigger.CanonicalEvent, error)
	router   *trigger.Router
	logger   *log.Logger
	maxBody  int64
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger := internal.WithRequestID(h.logger, reqID)
	internal.IncEvent(h.provider)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	event, err := h.parse(r, rawBody)
	if err != nil {
		h.respondError(w, logger, err)
		return
	}

	event.RequestID = reqID
	outcomes := h.router.Process(r.Context(), event)
	for _, out := range outcomes {
		if out.Status == trigger.StatusFiltered {
			continue
		}
		internal.IncOutcome(out.Status)
		logger.Printf("provider=%s trigger=%s status=%s resource=%s", h.provider, out.Trigger, out.Status, out.Resource)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) respondError(w http.ResponseWriter, logger *log.Logger, err error) {
	var authErr *trigger.AuthenticationError
	var malformed *trigger.MalformedPayloadError
	switch {
	case errors.Is(err, errPing):
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, errIgnore):
		w.WriteHeader(http.StatusAccepted)
	case errors.As(err, &authErr):
		logger.Printf("%s rejected: %v", h.provider, err)
		internal.IncAuthFailure(h.provider)
		w.WriteHeader(http.StatusUnauthorized)
	case errors.As(err, &malformed):
		logger.Printf("%s parse failed: %v", h.provider, err)
		internal.IncParseError(h.provider)
		w.WriteHeader(http.StatusBadRequest)
	default:
		logger.Printf("%s parse failed: %v", h.provider, err)
		internal.IncParseError(h.provider)
		w.WriteHeader(http.StatusBadRequest)
	}
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func decodeObject(raw []byte) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
