package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	factsvc "github.com/otbe/factcast/internal/services/facts"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// FactsController serves publishing, subscribing and lookups of facts.
type FactsController struct {
	svc    *factsvc.Service
	logger logpkg.Logger
}

// NewFactsController creates a facts controller over svc.
func NewFactsController(svc *factsvc.Service, logger logpkg.Logger) *FactsController {
	return &FactsController{svc: svc, logger: logger}
}

// RegisterRoutes registers the /v1/facts endpoints.
func (c *FactsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/facts/publish", c.handlePublish)
	mux.HandleFunc("/v1/facts/subscribe", c.handleSubscribe)
	mux.HandleFunc("/v1/facts/serial", c.handleSerialOf)
	mux.HandleFunc("/v1/facts/latest", c.handleLatest)
	mux.HandleFunc("/v1/facts/fetch", c.handleFetch)
}

// handlePublish appends a batch atomically and answers 201 with the
// assigned ids and serials.
func (c *FactsController) handlePublish(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	out, err := c.svc.Publish(r.Context(), req.Facts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res := make([]publishedFact, len(out))
	for i, f := range out {
		res[i] = publishedFact{Header: f.Header, Serial: f.Serial}
	}
	writeStatusJSON(w, http.StatusCreated, map[string]any{"facts": res})
}

// handleSubscribe streams a subscription as Server-Sent Events.
//
// The request is either the JSON form in the "request" parameter, or built
// from ns (repeatable), type, follow, ids, since, sinceSerial and
// maxLatencyMs. A Last-Event-ID header resumes after that serial.
func (c *FactsController) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	req, err := subscribeRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	sink := &sseSink{w: w, r: r}
	if err := c.svc.Subscribe(r.Context(), req, sink); err != nil {
		if !sink.started {
			w.Header().Del("Cache-Control")
			writeServiceError(w, err)
			return
		}
		c.logger.Debug("http.subscribe.end", logpkg.Err(err))
	}
}

func subscribeRequest(r *http.Request) (fact.Request, error) {
	q := r.URL.Query()
	resume, err := parseUint(r.Header.Get("Last-Event-ID"))
	if err != nil {
		return fact.Request{}, err
	}
	if raw := q.Get("request"); raw != "" {
		req, err := fact.ParseRequest([]byte(raw))
		if err != nil || resume == 0 {
			return req, err
		}
		return resumeAfter(req, resume)
	}

	namespaces := q["ns"]
	if len(namespaces) == 0 {
		return fact.Request{}, errors.Wrap(fact.ErrInvalidRequest, "ns is required")
	}
	specs := make([]fact.Spec, len(namespaces))
	for i, ns := range namespaces {
		specs[i] = fact.Spec{Namespace: ns, Type: q.Get("type")}
	}
	var sb *fact.SpecBuilder
	if parseBool(q.Get("follow")) {
		sb = fact.Follow(specs...)
	} else {
		sb = fact.Catchup(specs...)
	}
	var cb *fact.CursorBuilder
	if parseBool(q.Get("ids")) {
		cb = sb.AsIDs()
	} else {
		cb = sb.AsFacts()
	}
	if ms := q.Get("maxLatencyMs"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n < 0 {
			return fact.Request{}, errors.Wrapf(fact.ErrInvalidRequest, "maxLatencyMs: %q", ms)
		}
		cb.MaxLatency(time.Duration(n) * time.Millisecond)
	}

	since := q.Get("since")
	switch {
	case resume > 0:
		return cb.SinceSerial(resume)
	case since != "":
		id, err := uuid.Parse(since)
		if err != nil {
			return fact.Request{}, errors.Wrapf(fact.ErrInvalidRequest, "since: %v", err)
		}
		return cb.Since(id)
	default:
		n, err := parseUint(q.Get("sinceSerial"))
		if err != nil {
			return fact.Request{}, err
		}
		return cb.SinceSerial(n)
	}
}

// resumeAfter rebuilds req with a serial cursor.
func resumeAfter(req fact.Request, serial uint64) (fact.Request, error) {
	sb := fact.NewRequest(req.Specs()...)
	var cb *fact.CursorBuilder
	if req.IDOnly() {
		cb = sb.AsIDs()
	} else {
		cb = sb.AsFacts()
	}
	return cb.Continuous(req.Continuous()).MaxLatency(req.MaxLatency()).SinceSerial(serial)
}

// handleSerialOf returns the serial of the fact given by ?id=.
func (c *FactsController) handleSerialOf(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	serial, ok, err := c.svc.SerialOf(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "fact not found")
		return
	}
	writeJSON(w, map[string]any{"id": id, "serial": serial})
}

// handleLatest returns the highest assigned serial.
func (c *FactsController) handleLatest(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	serial, err := c.svc.LatestSerial(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"serial": serial})
}

// handleFetch returns the full fact given by ?id=.
func (c *FactsController) handleFetch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, err := parseID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	f, ok, err := c.svc.FetchByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "fact not found")
		return
	}
	writeJSON(w, f)
}
