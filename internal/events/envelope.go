// Package events receives job change notifications pushed by the platform
// and applies them to the local job cache, so the console sees schedule
// edits made elsewhere without waiting for the next poll.
//
// Events arrive over NATS JetStream when nats_servers is configured, or over
// a websocket stream otherwise. Both transports deliver the same JSON
// envelope and share one Handler, whose Deduplicator drops an event seen on
// both.
//
// Message format (JSON):
//
//	{
//	  "type": "job_updated",
//	  "id": "evt-123",
//	  "payload": {"id": "job-1", "name": "Nightly export", "cron_expression": "0 2 * * *", "enabled": true}
//	}
package events

import (
	"encoding/json"
	"errors"
)

// Event types.
const (
	TypeJobUpdated = "job_updated"
	TypeJobDeleted = "job_deleted"
	// TypeJobsResync asks for a full job list refresh.
	TypeJobsResync = "jobs_resync"
)

// ErrMalformed is returned for events that can never be processed; they are
// not redelivered.
var ErrMalformed = errors.New("malformed event")

// Envelope wraps every event with type information.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// JobDeletedPayload is the payload of job_deleted.
type JobDeletedPayload struct {
	ID string `json:"id"`
}
