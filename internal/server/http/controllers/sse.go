package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	factsvc "github.com/otbe/factcast/internal/services/facts"
)

// sseSink implements factsvc.SubscribeSink for Server-Sent Events.
//
// Each notification becomes one event named after its kind. Fact and id
// events carry the serial as the event id, so a reconnecting EventSource
// resumes through Last-Event-ID.
type sseSink struct {
	w       http.ResponseWriter
	r       *http.Request
	started bool
}

// Send writes one event. Nothing reaches the client before Flush.
func (s *sseSink) Send(n factsvc.Notification) error {
	s.started = true
	var data notificationJSON
	switch n.Kind {
	case factsvc.KindFact, factsvc.KindID:
		id := n.ID
		data = notificationJSON{Serial: n.Serial, ID: &id, Fact: n.Fact}
	case factsvc.KindError:
		if n.Err != nil {
			data.Message = n.Err.Error()
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if n.Serial > 0 {
		if _, err := fmt.Fprintf(s.w, "id: %d\n", n.Serial); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", n.Kind, b)
	return err
}

// Context returns the request context for cancellation.
func (s *sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush flushes the HTTP response writer if it supports flushing.
func (s *sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
