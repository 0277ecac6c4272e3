package events

import "time"

const ClickRecordedType = "click.recorded"

// ClickRecorded is emitted once for every successful resolution of a short code.
// EventID is the idempotency key for consumers that may see a redelivery.
type ClickRecorded struct {
	EventID    string    `json:"eventId"`
	LinkID     uint64    `json:"linkId"`
	OwnerID    string    `json:"ownerId,omitempty"`
	VisitorID  string    `json:"visitorId,omitempty"`
	Referer    string    `json:"referer,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
