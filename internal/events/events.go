// Package events publishes domain events about join requests.
//
// Events are notifications, not part of the transaction: a publish failure
// is logged by the caller and never rolls back the committed change.
package events

import (
	"context"
	"time"

	"github.com/sakif/gitpilot/internal/model"
)

// Event types. The NATS subject is SubjectPrefix + "." + Type.
const (
	TypeJoinRequestSubmitted = "joinrequest.submitted"
	TypeJoinRequestResolved  = "joinrequest.resolved"
)

// Event is the JSON payload published for every type.
type Event struct {
	Type       string                  `json:"type"`
	ProjectID  string                  `json:"projectId"`
	RequestID  string                  `json:"requestId"`
	ActorID    string                  `json:"actorId"`
	Status     model.JoinRequestStatus `json:"status"`
	OccurredAt time.Time               `json:"occurredAt"`
}

// JoinRequestSubmitted builds the event for a newly created request.
func JoinRequestSubmitted(req *model.JoinRequest) Event {
	return Event{
		Type:       TypeJoinRequestSubmitted,
		ProjectID:  req.ProjectID,
		RequestID:  req.ID,
		ActorID:    req.Requester.UserID,
		Status:     req.Status,
		OccurredAt: req.CreatedAt,
	}
}

// JoinRequestResolved builds the event for an accepted or rejected request.
func JoinRequestResolved(req *model.JoinRequest) Event {
	e := Event{
		Type:       TypeJoinRequestResolved,
		ProjectID:  req.ProjectID,
		RequestID:  req.ID,
		ActorID:    req.ResolvedBy,
		Status:     req.Status,
		OccurredAt: time.Now().UTC(),
	}
	if req.ResolvedAt != nil {
		e.OccurredAt = *req.ResolvedAt
	}
	return e
}

// Publisher delivers events to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
