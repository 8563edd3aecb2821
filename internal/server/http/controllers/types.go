package controllers

import (
	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
)

// publishReq carries facts to append. Omitted ids are assigned by the server.
type publishReq struct {
	Facts []fact.Fact `json:"facts"`
}

// publishedFact is the header of an appended fact with its serial.
type publishedFact struct {
	fact.Header
	Serial uint64 `json:"serial"`
}

// notificationJSON is the data of one SSE event.
type notificationJSON struct {
	Serial  uint64     `json:"serial,omitempty"`
	ID      *uuid.UUID `json:"id,omitempty"`
	Fact    *fact.Fact `json:"fact,omitempty"`
	Message string     `json:"message,omitempty"`
}
