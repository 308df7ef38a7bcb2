package model

import "time"

// JoinRequestStatus is the lifecycle state of a JoinRequest. The only legal
// transitions are pending → accepted and pending → rejected.
type JoinRequestStatus string

const (
	StatusPending  JoinRequestStatus = "pending"
	StatusAccepted JoinRequestStatus = "accepted"
	StatusRejected JoinRequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s JoinRequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// IsDecision reports whether s is a terminal status a resolver may choose.
func (s JoinRequestStatus) IsDecision() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Requester is the identity snapshot captured when a request is submitted.
// It is not refreshed if the user later changes their profile.
type Requester struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Source string `json:"source"`
}

// JoinRequest is a user's request to join a project.
type JoinRequest struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	Requester  Requester         `json:"requester"`
	Message    string            `json:"message,omitempty"`
	Status     JoinRequestStatus `json:"status"`
	ResolvedBy string            `json:"resolvedBy,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty"`
}
